package decode

import "fmt"

// ErrorKind classifies decode failures.
type ErrorKind int

const (
	// LengthError: frame length disagrees with the class's declared length.
	LengthError ErrorKind = iota
	// UnhandledClass: the 24-bit type code has no entry in the static table.
	UnhandledClass
	// AssumptionViolation: a field documented as constant was observed otherwise.
	AssumptionViolation
	// ShortFrame: frame shorter than the minimum 5 bytes.
	ShortFrame
)

func (k ErrorKind) String() string {
	switch k {
	case LengthError:
		return "LengthError"
	case UnhandledClass:
		return "UnhandledClass"
	case AssumptionViolation:
		return "AssumptionViolation"
	case ShortFrame:
		return "ShortFrame"
	default:
		return "UnknownError"
	}
}

// Error is the classified decode error returned alongside Suppressed
// and Event results.
type Error struct {
	Kind     ErrorKind
	TypeCode uint32
	Detail   string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: type=0x%06x", e.Kind, e.TypeCode)
	}
	return fmt.Sprintf("%s: type=0x%06x: %s", e.Kind, e.TypeCode, e.Detail)
}
