package nwscript

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind groups failures by the stage that can produce them.
type ErrorKind int

const (
	// KindDecode reports malformed bytes: bad header, unknown opcode,
	// truncated stream or a jump to an address that is not an instruction.
	KindDecode ErrorKind = iota
	// KindStructural reports a graph that violates an assumption of one of
	// the passes, e.g. a block shared by two subroutines or a stack
	// underflow during simulation.
	KindStructural
	// KindSoft reports a condition the Script survives, such as a script
	// without an identifiable main subroutine.
	KindSoft
)

func (k ErrorKind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindStructural:
		return "structural"
	case KindSoft:
		return "soft"
	default:
		return "[unknown]"
	}
}

// ErrNoMainSubRoutine is wrapped by the soft error reported when no main
// subroutine could be identified.
var ErrNoMainSubRoutine = errors.New("no main subroutine")

// Error is the error type returned by every stage of the decompiler.
// Inspect it with errors.As.
type Error struct {
	Kind    ErrorKind
	Address uint32 // Address of the offending instruction, if HasAddress
	// HasAddress is false when the failure is not tied to one instruction.
	HasAddress bool
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.HasAddress {
		return fmt.Sprintf("%s error at %08X: %s", e.Kind, e.Address, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func decodeErrorf(addr uint32, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: KindDecode, Address: addr, HasAddress: true, Msg: fmt.Sprintf(format, args...)})
}

func structuralErrorf(addr uint32, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: KindStructural, Address: addr, HasAddress: true, Msg: fmt.Sprintf(format, args...)})
}

func structuralError(format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: KindStructural, Msg: fmt.Sprintf(format, args...)})
}

func softError(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindSoft, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsSoft reports whether err is a soft error the Script survived.
func IsSoft(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindSoft
}
