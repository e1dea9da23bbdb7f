package frame

import (
	"bytes"
	"testing"
)

func TestFramerSingleKnownFrame(t *testing.T) {
	f := New(nil)
	input := []byte{0x01, 0x04, 0x05, 0xBE, 0x00, 0x96, 0xB9, 0x91, 0x81}
	frames := f.Push(input)
	if len(frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(frames))
	}
	if !frames[0].KnownLength {
		t.Fatalf("expected a length-table-confirmed frame")
	}
	if !bytes.Equal(frames[0].Bytes, input) {
		t.Fatalf("frame bytes mismatch: got %x want %x", frames[0].Bytes, input)
	}
}

func TestFramerSplitAcrossPushes(t *testing.T) {
	f := New(nil)
	full := []byte{0x01, 0x04, 0x05, 0xBE, 0x00, 0x96, 0xB9, 0x91, 0x81}
	if frames := f.Push(full[:4]); len(frames) != 0 {
		t.Fatalf("expected no frames yet, got %d", len(frames))
	}
	frames := f.Push(full[4:])
	if len(frames) != 1 || !bytes.Equal(frames[0].Bytes, full) {
		t.Fatalf("expected the completed frame once the rest arrived, got %v", frames)
	}
}

func TestFramerConsecutiveKnownFrames(t *testing.T) {
	f := New(nil)
	frame1 := []byte{0x01, 0x04, 0x05, 0xBE, 0x00, 0x96, 0xB9, 0x91, 0x81}
	frame2 := []byte{0x07, 0x03, 0x04, 0x0F, 0x02, 0x00, 0x0D, 0x81}
	input := append(append([]byte(nil), frame1...), frame2...)

	frames := f.Push(input)
	if len(frames) != 2 {
		t.Fatalf("want 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Bytes, frame1) || !bytes.Equal(frames[1].Bytes, frame2) {
		t.Fatalf("frame contents mismatch: %x / %x", frames[0].Bytes, frames[1].Bytes)
	}
}

func TestFramerUnknownClassFallback(t *testing.T) {
	f := New(nil)
	// A type code with no table entry: the framer should fall back to
	// scanning for the next trailer byte rather than waiting forever.
	input := []byte{0xAB, 0xCD, 0xEF, 0x01, 0x02, 0x81}
	frames := f.Push(input)
	if len(frames) != 1 {
		t.Fatalf("want 1 fallback frame, got %d", len(frames))
	}
	if frames[0].KnownLength {
		t.Fatalf("expected the fallback frame to be marked unknown-length")
	}
	if !bytes.Equal(frames[0].Bytes, input) {
		t.Fatalf("frame bytes mismatch: got %x want %x", frames[0].Bytes, input)
	}
}

func TestFramerResyncsAfterGarbage(t *testing.T) {
	f := New(nil)
	// Leading garbage with no embedded trailer is silently dropped by
	// the forward scan for a length-confirmed candidate: both real
	// frames that follow recover intact, not merged with the noise.
	garbage := []byte{0x00, 0x00, 0x00}
	frame1 := []byte{0x07, 0x03, 0x04, 0x0F, 0x02, 0x00, 0x0D, 0x81}
	frame2 := []byte{0x01, 0x04, 0x05, 0xBE, 0x00, 0x96, 0xB9, 0x91, 0x81}

	input := append(append(append([]byte(nil), garbage...), frame1...), frame2...)
	frames := f.Push(input)
	if len(frames) != 2 {
		t.Fatalf("want 2 frames, got %d", len(frames))
	}
	if !frames[0].KnownLength || !bytes.Equal(frames[0].Bytes, frame1) {
		t.Fatalf("expected the first frame to recover cleanly as frame1, got known=%v bytes=%x",
			frames[0].KnownLength, frames[0].Bytes)
	}
	if !frames[1].KnownLength || !bytes.Equal(frames[1].Bytes, frame2) {
		t.Fatalf("expected the second frame to recover cleanly as frame2, got known=%v bytes=%x",
			frames[1].KnownLength, frames[1].Bytes)
	}
}

func TestFramerLargeNoiseRunBeforeValidFrameStillRecoversIt(t *testing.T) {
	f := New(nil)
	// Injecting arbitrary noise bytes (here, with no embedded trailer
	// at all) before a valid frame still produces that valid frame, as
	// long as the noise run stays under the hard buffer bound.
	noise := bytes.Repeat([]byte{0x00}, 200)
	frame := []byte{0x01, 0x04, 0x05, 0xBE, 0x00, 0x96, 0xB9, 0x91, 0x81}
	input := append(append([]byte(nil), noise...), frame...)

	frames := f.Push(input)
	if len(frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(frames))
	}
	if !frames[0].KnownLength || !bytes.Equal(frames[0].Bytes, frame) {
		t.Fatalf("expected the frame to recover cleanly, got known=%v bytes=%x",
			frames[0].KnownLength, frames[0].Bytes)
	}
}

func TestFramerWaitsForIncompleteData(t *testing.T) {
	f := New(nil)
	frames := f.Push([]byte{0x01, 0x04})
	if len(frames) != 0 {
		t.Fatalf("want no frames from an incomplete type code, got %d", len(frames))
	}
}

func TestFramerDropsOversizedBuffer(t *testing.T) {
	f := New(nil)
	garbage := bytes.Repeat([]byte{0x00}, maxBufferBytes+1)
	frames := f.Push(garbage)
	if len(frames) != 0 {
		t.Fatalf("expected no frames from pure non-terminated garbage, got %d", len(frames))
	}
	if len(f.buf) != 0 {
		t.Fatalf("expected the oversized buffer to be discarded, still holding %d bytes", len(f.buf))
	}
}
