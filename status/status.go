// Package status defines the error taxonomy shared by every layer of the
// engine and the integer codes reported across the handle boundary.
package status

import "errors"

var (
	ErrGeneric        = errors.New("generic error")
	ErrInvalidHandle  = errors.New("invalid handle")
	ErrInvalidPointer = errors.New("invalid pointer")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrRange          = errors.New("out of range")
	ErrMemory         = errors.New("allocation failed")
	ErrReadOnly       = errors.New("property is read-only")
)

// Code is the status returned by every external entry point.
type Code int

const (
	CodeNone Code = iota
	CodeGeneric
	CodeInvalidHandle
	CodeInvalidPointer
	CodeTypeMismatch
	CodeRange
	CodeMemory
	CodeReadOnly
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrInvalidHandle, CodeInvalidHandle},
	{ErrInvalidPointer, CodeInvalidPointer},
	{ErrTypeMismatch, CodeTypeMismatch},
	{ErrRange, CodeRange},
	{ErrMemory, CodeMemory},
	{ErrReadOnly, CodeReadOnly},
	{ErrGeneric, CodeGeneric},
}

// CodeOf maps err to its status code. Errors outside the taxonomy are
// reported as CodeGeneric.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeGeneric
}

// Err is the inverse of CodeOf.
func (c Code) Err() error {
	for _, e := range codes {
		if e.code == c {
			return e.err
		}
	}
	if c == CodeNone {
		return nil
	}
	return ErrGeneric
}

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeGeneric:
		return "generic"
	case CodeInvalidHandle:
		return "invalid handle"
	case CodeInvalidPointer:
		return "invalid pointer"
	case CodeTypeMismatch:
		return "type mismatch"
	case CodeRange:
		return "range"
	case CodeMemory:
		return "memory"
	case CodeReadOnly:
		return "read-only"
	default:
		return "unknown"
	}
}
