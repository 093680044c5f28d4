package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeValidation   = "validation_error"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeTimeout      = "timeout"
	ErrCodeBadRequest   = "bad_request"
)

var (
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfBuddy          = errors.New("cannot add yourself as a buddy")
	ErrBuddyExists        = errors.New("buddy already exists")
	ErrBuddyNotFound      = errors.New("buddy not found")
	ErrAwayMessageTooLong = errors.New("away message too long")
	ErrInvalidStatus      = errors.New("invalid status")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
