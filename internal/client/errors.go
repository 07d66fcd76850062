package client

import (
	"errors"
	"fmt"
)

// Kind classifies remote-call failures so callers can branch without
// string-matching messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindBadRequest
	KindAuth
	KindForbidden
	KindNotFound
	KindServer
	KindUnavailable
	// KindBusiness is an envelope with success=false
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindBadRequest:
		return "bad_request"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	case KindUnavailable:
		return "unavailable"
	case KindBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// Error is the unified remote-call error. Message is user-visible.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Kind, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage extracts the user-visible message from a remote-call error,
// falling back to the raw error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

// IsKind reports whether err is a client error of the given kind
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
