package module

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindToolNotFound
	KindPermissionDenied
	KindParseError
	KindBackendExhausted
	KindNoDevicesFound
)

func (k Kind) String() string {
	switch k {
	case KindToolNotFound:
		return "tool_not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindParseError:
		return "parse_error"
	case KindBackendExhausted:
		return "backend_exhausted"
	case KindNoDevicesFound:
		return "no_devices_found"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrToolNotFound     = &Error{Kind: KindToolNotFound}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrParse            = &Error{Kind: KindParseError}
	ErrBackendExhausted = &Error{Kind: KindBackendExhausted}
	ErrNoDevicesFound   = &Error{Kind: KindNoDevicesFound}
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind of the first *Error in err's chain, KindInternal if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
