package model

import (
	"errors"
	"fmt"
)

// ErrorCodeResourceDoesNotExist is the service error code for a missing entity.
const ErrorCodeResourceDoesNotExist = "RESOURCE_DOES_NOT_EXIST"

// ErrorKind classifies failures of calls to the tracking service.
type ErrorKind int

const (
	// KindUnknown covers transport failures, undecodable responses and
	// anything not produced by the transport boundary.
	KindUnknown ErrorKind = iota
	// KindService is a structured error returned by the service.
	KindService
	// KindNotFound means the requested resource does not exist.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified failure of a tracking service call.
type Error struct {
	Kind       ErrorKind
	StatusCode int    // 0 when the request never got a response
	Code       string // service error_code, e.g. RESOURCE_DOES_NOT_EXIST
	Message    string
	Err        error // underlying cause for KindUnknown
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message != "" {
			return fmt.Sprintf("tracking: %s: %v", e.Message, e.Err)
		}
		return fmt.Sprintf("tracking: %v", e.Err)
	}
	return fmt.Sprintf("tracking: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err. Errors that did not come from the
// transport boundary are KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err signals a resource that does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
