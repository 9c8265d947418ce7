package series

import (
	"errors"
	"fmt"
)

// Kind classifies the failures reported by series operations.
type Kind string

const (
	KindInvalidArgument       Kind = "INVALID_ARGUMENT"
	KindInvalidJSONTS         Kind = "INVALID_JSONTS"
	KindInvalidPeriod         Kind = "INVALID_PERIOD"
	KindNotSupported          Kind = "NOT_SUPPORTED"
	KindNotSerializable       Kind = "NOT_SERIALIZABLE"
	KindMissing               Kind = "MISSING"
	KindCollision             Kind = "COLLISION"
	KindUnallocatedDate       Kind = "UNALLOCATED_DATE"
	KindInsufficientPrecision Kind = "INSUFFICIENT_PRECISION"
)

// Error is a classified series failure. It renders as "KIND: message".
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidArgument       = &Error{Kind: KindInvalidArgument}
	ErrInvalidJSONTS         = &Error{Kind: KindInvalidJSONTS}
	ErrInvalidPeriod         = &Error{Kind: KindInvalidPeriod}
	ErrNotSupported          = &Error{Kind: KindNotSupported}
	ErrNotSerializable       = &Error{Kind: KindNotSerializable}
	ErrMissing               = &Error{Kind: KindMissing}
	ErrCollision             = &Error{Kind: KindCollision}
	ErrUnallocatedDate       = &Error{Kind: KindUnallocatedDate}
	ErrInsufficientPrecision = &Error{Kind: KindInsufficientPrecision}
)

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
