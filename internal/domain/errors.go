package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies query-level failures.
type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindUpstreamInvalid
	KindMalformedResponse
	KindConfiguration
	KindTimeout
	KindInvalidArgument
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUpstreamInvalid:
		return "upstream_invalid"
	case KindMalformedResponse:
		return "malformed_response"
	case KindConfiguration:
		return "configuration"
	case KindTimeout:
		return "timeout"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

var (
	ErrTransport         = &Error{Kind: KindTransport}
	ErrUpstreamInvalid   = &Error{Kind: KindUpstreamInvalid}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
)

// Error carries the kind and the component that produced it.
type Error struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func NewError(kind ErrorKind, source string, err error) *Error {
	return &Error{Kind: kind, Source: source, Err: err}
}

func Errorf(kind ErrorKind, source, format string, args ...any) *Error {
	return &Error{Kind: kind, Source: source, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	if e.Source == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
