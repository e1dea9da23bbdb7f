package capture

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/lkarsten/fdxread/src/fdxread/source"
)

// binaryChunkSize bounds how many bytes BinaryCapture hands the
// pipeline's framer per Next call, mirroring the granularity of a
// live serial read rather than handing over the whole file (or
// pre-split frames) at once -- the framer, not this source, is
// responsible for finding frame boundaries.
const binaryChunkSize = 64

// BinaryCapture replays a raw .nxb-style binary capture as an
// undifferentiated byte stream, exactly as a live serial port would
// hand bytes to the framer. It performs no framing itself: a naive
// split on 0x81 is unsafe for payloads that legitimately contain that
// byte, so all resynchronization is deferred to frame.Framer.
type BinaryCapture struct {
	content []byte
	offset  int
	pace    float64
	closed  bool
}

// NewBinary loads a binary capture file for replay, skipping the
// first seek bytes. A positive pace sleeps 1/pace seconds before each
// chunk Next returns, so it limits chunks (of up to binaryChunkSize
// bytes) per second, not decoded events: one chunk may hold several
// frames.
func NewBinary(path string, seek int64, pace float64) (*BinaryCapture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if seek > 0 {
		if _, err := f.Seek(seek, io.SeekStart); err != nil {
			return nil, err
		}
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &BinaryCapture{content: content, pace: pace}, nil
}

// Next returns the next raw chunk of the capture, up to
// binaryChunkSize bytes, for the caller's framer to resynchronize.
func (b *BinaryCapture) Next(ctx context.Context) (source.Chunk, error) {
	if b.closed {
		return source.Chunk{}, source.ErrClosed
	}
	if ctx.Err() != nil {
		return source.Chunk{}, ctx.Err()
	}
	if b.offset >= len(b.content) {
		b.closed = true
		return source.Chunk{}, source.ErrClosed
	}

	end := b.offset + binaryChunkSize
	if end > len(b.content) {
		end = len(b.content)
	}
	chunk := b.content[b.offset:end]
	b.offset = end

	if b.pace > 0 {
		time.Sleep(time.Duration(float64(time.Second) / b.pace))
	}
	return source.Chunk{Timestamp: time.Now(), Bytes: chunk}, nil
}

// Close marks the source exhausted.
func (b *BinaryCapture) Close() error {
	b.closed = true
	return nil
}
