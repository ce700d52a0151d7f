package stream

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrShapeMismatch is returned when an appended buffer's byte length
	// is not a whole positive multiple of the frame size declared by the
	// bounded dimensions. The failed call leaves all chunk state intact.
	ErrShapeMismatch = errors.New("frame shape mismatch")

	// ErrStreamClosed is returned for appends after Close.
	ErrStreamClosed = errors.New("stream is closed")
)

// WriteError is a sink write failure for one object. Failures are
// collected during the stream's lifetime and surfaced together at
// close; already-written objects are never rolled back.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %q: %v", e.Key, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// failureList collects write failures from the worker pool.
type failureList struct {
	mu   sync.Mutex
	errs []error
}

func (f *failureList) add(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, &WriteError{Key: key, Err: err})
}

func (f *failureList) join() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return errors.Join(f.errs...)
}
