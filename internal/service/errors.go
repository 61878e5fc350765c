package service

import "errors"

var (
	ErrNotFound             = errors.New("scheduled job not found")
	ErrTransportUnavailable = errors.New("messaging client is not connected")
	ErrStopped              = errors.New("messenger is shutting down")
)

// ValidationError rejects a request before anything is persisted.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}
