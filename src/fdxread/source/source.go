// Package source defines the pull-style byte source abstraction the
// pipeline driver reads from: live serial, text capture replay, and
// binary capture replay all implement the same Source interface, so
// the rest of the system (framer, decoder, formatters) never knows
// which one it is talking to.
package source

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Next once a source has been permanently
// exhausted (EOF on a capture file, or an explicit Close call) and
// will never produce another chunk.
var ErrClosed = errors.New("source: closed")

// Chunk is one read of raw bytes off the wire, carrying the time at
// which it was captured or received — used to drive replay pacing and
// to timestamp formatted output.
type Chunk struct {
	Timestamp time.Time
	Bytes     []byte
}

// Source is a pull-style byte source. Next blocks until a chunk is
// available, ctx is cancelled, or the source is permanently exhausted
// (ErrClosed). Implementations that reconnect internally (live serial)
// never return a non-ErrClosed, non-context error for a transient
// failure — they retry instead.
type Source interface {
	Next(ctx context.Context) (Chunk, error)
	Close() error
}
