package apperrors

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrSourceUnavailable = errors.New("step source unavailable")
	ErrSessionClosed     = errors.New("session closed")
)
