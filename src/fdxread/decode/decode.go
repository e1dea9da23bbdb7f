// Package decode implements the static FDX message-class table and the
// pure per-class field decoder: complete frame bytes in, a classified
// Result (Event, Suppressed, or Error) out. Decode never performs I/O
// and never mutates input; it is safe to call from multiple goroutines.
package decode

import (
	"fmt"

	"github.com/lkarsten/fdxread/src/fdxread/event"
)

// ResultKind distinguishes the three shapes a decode can produce.
type ResultKind int

const (
	ResultEvent ResultKind = iota
	ResultSuppressed
	ResultError
)

// Result is the outcome of decoding one frame.
type Result struct {
	Kind  ResultKind
	Event event.Event
	Err   *Error
}

// FrameLength reports the total on-wire length (type code + payload +
// trailer) declared for a 24-bit type code, for the framer's
// length-table lookup. known is false for an unrecognized type code.
func FrameLength(typeCode uint32) (length int, known bool) {
	def, ok := classTable[typeCode]
	if !ok {
		return 0, false
	}
	return def.length, true
}

// Decode classifies and decodes one complete frame, including its
// 3-byte type code and trailing terminator byte.
func Decode(frame []byte) Result {
	if len(frame) < 5 {
		return Result{Kind: ResultError, Err: &Error{Kind: ShortFrame, TypeCode: typeCodePrefix(frame)}}
	}
	typeCode := typeCodePrefix(frame)
	if frame[len(frame)-1] != 0x81 {
		return Result{Kind: ResultError, Err: &Error{
			Kind:     LengthError,
			TypeCode: typeCode,
			Detail:   "frame does not end in trailer byte 0x81",
		}}
	}
	def, known := classTable[typeCode]
	if !known {
		return Result{Kind: ResultError, Err: &Error{Kind: UnhandledClass, TypeCode: typeCode}}
	}
	if len(frame) != def.length {
		return Result{Kind: ResultError, Err: &Error{
			Kind:     LengthError,
			TypeCode: typeCode,
			Detail:   fmt.Sprintf("class %s declares length %d, got %d", def.name, def.length, len(frame)),
		}}
	}
	payload := frame[3 : len(frame)-1]
	ev, suppressed, err := def.decodeFn(payload)
	if err != nil {
		err.TypeCode = typeCode
		return Result{Kind: ResultError, Err: err}
	}
	if suppressed {
		return Result{Kind: ResultSuppressed}
	}
	ev.Class = def.name
	return Result{Kind: ResultEvent, Event: ev}
}

func typeCodePrefix(frame []byte) uint32 {
	var tc uint32
	for i := 0; i < 3 && i < len(frame); i++ {
		tc = tc<<8 | uint32(frame[i])
	}
	return tc
}
