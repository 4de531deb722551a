// Package apperr classifies failures of the scan flow so that every layer
// above the collaborator client can decide what the user sees without looking
// at raw error text.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindDecode
	KindNetwork
	KindServer
	KindProtocol
	KindTimeout
	KindUnknownGroup
	KindSurveySubmit
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	case KindUnknownGroup:
		return "unknown_group"
	case KindSurveySubmit:
		return "survey_submit"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Status is the HTTP status for KindServer and
// zero otherwise.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with kind.
func New(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Newf formats a message and wraps it with kind.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Server wraps err as a KindServer failure carrying the HTTP status.
func Server(status int, err error) error {
	return &Error{Kind: KindServer, Status: status, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
