package logging

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Level is the process-wide log verbosity. It is independent of stream
// instances: setting it affects every logger built with NewLogger.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	// LevelNone suppresses all output.
	LevelNone
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelNone:
		return "none"
	}
	return "unknown"
}

// ParseLevel parses a level name as produced by String.
func ParseLevel(s string) (Level, error) {
	for l := LevelDebug; l <= LevelNone; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// slogNone sits above every slog level so LevelNone disables all records.
const slogNone = slog.Level(128)

var (
	levelVar slog.LevelVar
	current  atomic.Int32
)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the process-wide log level.
func SetLevel(l Level) {
	current.Store(int32(l))
	switch l {
	case LevelDebug:
		levelVar.Set(slog.LevelDebug)
	case LevelInfo:
		levelVar.Set(slog.LevelInfo)
	case LevelWarning:
		levelVar.Set(slog.LevelWarn)
	case LevelError:
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slogNone)
	}
}

// GetLevel returns the process-wide log level.
func GetLevel() Level {
	return Level(current.Load())
}
