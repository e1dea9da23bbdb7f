// Package frame implements the resynchronizing byte-stream framer. It
// turns an arbitrary, possibly discontinuous byte stream into
// candidate frames terminated by the FDX trailer byte 0x81, using the
// decode package's static length table to prefer length-confirmed
// frames over a naive trailer scan.
package frame

import (
	"github.com/sirupsen/logrus"

	"github.com/lkarsten/fdxread/src/fdxread/decode"
)

// trailerByte terminates every FDX frame. It is not a true delimiter:
// it also appears as in-payload data, which is why framing requires
// the length table rather than a simple split on this byte.
const trailerByte = 0x81

// maxBufferBytes bounds how much unresolved data the framer will hold
// before giving up on resynchronization and discarding it.
const maxBufferBytes = 1024

// Frame is one candidate frame extracted from the stream: the
// complete byte sequence from its first type-code byte through its
// trailer, inclusive. KnownLength records whether the type code
// matched the static class table (true) or the frame was recovered by
// the naive fallback scan (false) — decode.Decode re-derives this
// itself, but callers that want to log framing behavior can use it
// without decoding.
type Frame struct {
	Bytes       []byte
	KnownLength bool
}

// Framer accumulates bytes pushed to it and emits complete candidate
// frames. It is not safe for concurrent use; the pipeline driver owns
// a single Framer per byte source.
type Framer struct {
	buf []byte
	log *logrus.Entry
}

// New constructs a Framer. log may be nil, in which case resync events
// are not logged.
func New(log *logrus.Entry) *Framer {
	return &Framer{log: log}
}

// Push appends newly read bytes and returns every complete frame that
// can now be extracted. Leftover, not-yet-complete bytes remain
// buffered for the next call.
func (f *Framer) Push(chunk []byte) []Frame {
	f.buf = append(f.buf, chunk...)

	var frames []Frame
	for {
		extracted, consumed, action := f.tryExtract()
		switch action {
		case actionWait:
			// The bound applies only when no frame can be produced:
			// a single large push full of valid frames drains normally.
			if len(f.buf) > maxBufferBytes {
				if f.log != nil {
					f.log.WithField("buffered", len(f.buf)).Warn("frame buffer exceeded bound without resync, discarding")
				}
				f.buf = nil
			}
			return frames
		case actionAccept:
			frames = append(frames, Frame{
				Bytes:       append([]byte(nil), extracted...),
				KnownLength: true,
			})
			f.buf = f.buf[consumed:]
		case actionAcceptUnknown:
			frames = append(frames, Frame{
				Bytes:       append([]byte(nil), extracted...),
				KnownLength: false,
			})
			f.buf = f.buf[consumed:]
		}
	}
}

type frameAction int

const (
	actionWait frameAction = iota
	actionAccept
	actionAcceptUnknown
)

// tryExtract scans forward from offset 0 looking for the first offset
// whose 3-byte type code both matches the static length table AND has
// a trailer at the declared position. Any bytes strictly before that
// offset are silently dropped as unresynchronized noise — a run of
// garbage preceding a valid frame still yields that frame intact,
// rather than lumping the noise together with whatever frame bytes
// happen to follow it.
//
// If the scan instead reaches a trailer byte without ever finding a
// length-table match, everything from offset 0 through that trailer
// is yielded as one "unknown class" frame: unlike the noise case
// above, a true unknown-class frame's bytes are never silently
// dropped, so unrecognized but real traffic stays visible to the
// decoder as UnhandledClass rather than disappearing.
func (f *Framer) tryExtract() (frameBytes []byte, consumed int, action frameAction) {
	buf := f.buf

	for i := 0; i < len(buf); i++ {
		if i+3 <= len(buf) {
			typeCode := uint32(buf[i])<<16 | uint32(buf[i+1])<<8 | uint32(buf[i+2])
			if length, known := decode.FrameLength(typeCode); known && length >= 5 && length <= 24 {
				end := i + length
				if end > len(buf) {
					// A promising, length-table-confirmed candidate that
					// isn't fully buffered yet: wait for more data rather
					// than risk resynchronizing past it.
					return nil, 0, actionWait
				}
				if buf[end-1] == trailerByte {
					return buf[i:end], end, actionAccept
				}
				// Type code matched but the trailer isn't where the
				// declared length says it should be: this candidate
				// isn't actually an instance of this class. Keep
				// scanning forward.
			}
		}

		if buf[i] == trailerByte {
			return buf[:i+1], i + 1, actionAcceptUnknown
		}
	}

	return nil, 0, actionWait
}
