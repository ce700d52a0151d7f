// Package stream implements the streaming Zarr writer: it assembles
// appended frames into chunks, pipelines compression and sink writes
// through a worker pool, packs shards for sharded v3 stores, and emits
// version-correct metadata at open and close.
//
// Lifecycle: open (accepting appends) -> closing (draining in-flight
// work, flushing partials) -> closed (metadata finalized). Append after
// close fails with ErrStreamClosed; a second Close is a no-op.
//
// Concurrency model:
//   - One producer calls Append; appends are mutex-serialized.
//   - Sealed chunks are handed to a fixed worker pool over a bounded
//     channel. A weighted semaphore caps in-flight chunks, so Append
//     blocks only as backpressure when compression or I/O lags.
//   - Workers may finish out of order; the shard packer and sink place
//     bytes by chunk coordinate, not arrival order.
//   - Close drains the pool (completion barrier) before computing the
//     final shape and writing array metadata.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"zarrstream/internal/codec"
	"zarrstream/internal/logging"
	"zarrstream/internal/shard"
	"zarrstream/internal/sink"
	"zarrstream/internal/zarr"
	"zarrstream/internal/zarr/meta"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Pool defaults. MaxInFlight bounds memory: at most that many sealed
// chunk buffers exist between Append and the sink.
const (
	DefaultWorkers     = 4
	DefaultMaxInFlight = 8
)

type state int

const (
	stateOpen state = iota
	stateClosing
	stateClosed
)

// Config carries stream construction parameters.
type Config struct {
	Settings zarr.StreamSettings

	// Sink overrides the destination derived from Settings. Intended
	// for tests; production streams build a filesystem or S3 sink from
	// Settings and wrap it with retries.
	Sink sink.Sink

	// Logger for structured logging. If nil, logging is disabled.
	// The stream scopes this logger with component and stream id.
	Logger *slog.Logger
}

// job is one sealed chunk handed to the worker pool. buf holds
// frames * FrameBytes valid bytes; ownership transfers to the worker.
type job struct {
	index  uint64
	frames uint64
	buf    []byte
}

// openChunk is the single chunk currently accepting frames.
type openChunk struct {
	index  uint64
	filled uint64
	buf    []byte
}

// Stream is the streaming writer. Create with New, feed with Append,
// and always Close: partial chunks, open shards, and array metadata are
// written only on Close.
type Stream struct {
	settings zarr.StreamSettings
	geo      *zarr.Geometry
	codec    *codec.Codec
	snk      sink.Sink
	ser      meta.Serializer
	packer   *shard.Packer // nil unless sharded v3
	logger   *slog.Logger

	mu     sync.Mutex
	state  state
	frames uint64
	cur    *openChunk

	jobs     chan job
	inFlight *semaphore.Weighted
	wg       sync.WaitGroup
	failures failureList
}

// New validates settings, writes the group-level metadata documents,
// and starts the worker pool. A validation failure means the stream
// never opened and nothing was written.
func New(ctx context.Context, cfg Config) (*Stream, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}

	id := uuid.Must(uuid.NewV7())
	logger := logging.Default(cfg.Logger).With("component", "stream", "stream", id.String())

	snk := cfg.Sink
	if snk == nil {
		var err error
		if cfg.Settings.S3 != nil {
			snk, err = sink.NewS3(ctx, *cfg.Settings.S3, cfg.Settings.StorePath)
		} else {
			snk, err = sink.NewFS(cfg.Settings.StorePath)
		}
		if err != nil {
			return nil, fmt.Errorf("open sink: %w", err)
		}
		snk = sink.WithRetry(snk, 0, 0, cfg.Logger)
	}

	workers := cfg.Settings.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	maxInFlight := cfg.Settings.MaxInFlight
	if maxInFlight == 0 {
		maxInFlight = DefaultMaxInFlight
	}

	cdc, err := codec.New(cfg.Settings.Compression, cfg.Settings.DataType.Size())
	if err != nil {
		return nil, fmt.Errorf("init codec: %w", err)
	}

	s := &Stream{
		settings: cfg.Settings,
		geo:      zarr.NewGeometry(&cfg.Settings),
		codec:    cdc,
		snk:      snk,
		ser:      meta.NewSerializer(&cfg.Settings),
		logger:   logger,
		jobs:     make(chan job, maxInFlight),
		inFlight: semaphore.NewWeighted(int64(maxInFlight)),
	}
	if cfg.Settings.Sharded() {
		s.packer = shard.NewPacker(s.geo)
	}

	// Group/root metadata is written at open; array shape is unknown
	// until close.
	docs, err := s.ser.OpenDocs()
	if err != nil {
		return nil, fmt.Errorf("build metadata: %w", err)
	}
	for _, doc := range docs {
		if err := snk.Put(ctx, doc.Key, doc.Data); err != nil {
			return nil, fmt.Errorf("write metadata %q: %w", doc.Key, err)
		}
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	logger.Info("stream opened",
		"version", cfg.Settings.Version.String(),
		"dimensions", len(cfg.Settings.Dimensions),
		"store", cfg.Settings.StorePath,
		"compressed", cdc.Enabled(),
		"sharded", s.packer != nil)
	return s, nil
}

// Append ingests one or more frames. The buffer length must be a whole
// positive multiple of the frame byte size; each contained frame is
// copied into the open chunk at its computed offset, and every chunk
// that fills is sealed and dispatched to the worker pool. Append blocks
// only when the in-flight chunk limit is reached.
func (s *Stream) Append(p []byte) error {
	frameBytes := s.geo.FrameBytes()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return ErrStreamClosed
	}
	if len(p) == 0 || uint64(len(p))%frameBytes != 0 {
		return fmt.Errorf("%w: buffer length %d is not a multiple of frame size %d",
			ErrShapeMismatch, len(p), frameBytes)
	}

	for off := uint64(0); off < uint64(len(p)); off += frameBytes {
		if s.cur == nil {
			s.cur = &openChunk{
				index: s.geo.ChunkIndex(s.frames),
				buf:   make([]byte, s.geo.ChunkBytes()),
			}
		}
		copy(s.cur.buf[s.geo.FrameOffset(s.frames):], p[off:off+frameBytes])
		s.cur.filled++
		s.frames++

		if s.cur.filled == s.geo.ChunkFrames() {
			s.dispatch(job{index: s.cur.index, frames: s.cur.filled, buf: s.cur.buf})
			s.cur = nil
		}
	}
	return nil
}

// dispatch hands a sealed chunk to the pool, blocking on the in-flight
// limit. Called with mu held; workers release semaphore slots without
// taking mu, so backpressure cannot deadlock against Close.
func (s *Stream) dispatch(j job) {
	_ = s.inFlight.Acquire(context.Background(), 1)
	s.jobs <- j
}

// worker encodes sealed chunks and routes them to the shard packer or
// directly to the sink. Write failures are collected, not fatal: the
// stream keeps accepting appends and the failures surface at close.
func (s *Stream) worker() {
	defer s.wg.Done()
	ctx := context.Background()

	for j := range s.jobs {
		data := j.buf[:j.frames*s.geo.FrameBytes()]
		enc, err := s.codec.Encode(data)
		if err != nil {
			key := zarr.ChunkKey(s.settings.Version, s.geo.ChunkCoord(j.index))
			s.logger.Error("encode chunk failed", "key", key, "error", err)
			s.failures.add(key, err)
			s.inFlight.Release(1)
			continue
		}

		if s.packer != nil {
			if obj, done := s.packer.Add(j.index, enc); done {
				s.put(ctx, obj.Key, obj.Data)
			}
		} else {
			key := zarr.ChunkKey(s.settings.Version, s.geo.ChunkCoord(j.index))
			s.put(ctx, key, enc)
		}
		s.inFlight.Release(1)
	}
}

func (s *Stream) put(ctx context.Context, key string, data []byte) {
	if err := s.snk.Put(ctx, key, data); err != nil {
		s.logger.Error("write failed", "key", key, "error", err)
		s.failures.add(key, err)
	}
}

// Close drains all in-flight work, flushes the partial chunk and any
// open shards, writes the final array metadata, and closes the sink.
// It reports every write failure accumulated over the stream's life;
// objects already written stay on the sink regardless. A second Close
// is a no-op and returns nil.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateOpen {
		s.mu.Unlock()
		return nil
	}
	s.state = stateClosing

	// Flush the partial chunk at its actual filled extent, no padding.
	if s.cur != nil && s.cur.filled > 0 {
		s.dispatch(job{index: s.cur.index, frames: s.cur.filled, buf: s.cur.buf})
	}
	s.cur = nil
	frames := s.frames
	s.mu.Unlock()

	// Completion barrier: every dispatched chunk is encoded and written
	// (or recorded as failed) before shards flush and shape is final.
	close(s.jobs)
	s.wg.Wait()

	if s.packer != nil {
		for _, obj := range s.packer.Flush() {
			s.put(ctx, obj.Key, obj.Data)
		}
	}

	// Array metadata only exists once data does.
	if frames > 0 {
		doc, err := s.ser.ArrayDoc(s.geo.Shape(frames))
		if err != nil {
			s.failures.add(doc.Key, err)
		} else {
			s.put(ctx, doc.Key, doc.Data)
		}
	}

	if err := s.snk.Close(); err != nil {
		s.failures.add("", err)
	}

	s.mu.Lock()
	s.state = stateClosed
	s.mu.Unlock()

	err := s.failures.join()
	if err != nil {
		s.logger.Error("stream closed with write failures", "frames", frames, "error", err)
		return fmt.Errorf("close stream: %w", err)
	}
	s.logger.Info("stream closed", "frames", frames)
	return nil
}

// Frames returns the number of frames appended so far.
func (s *Stream) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
