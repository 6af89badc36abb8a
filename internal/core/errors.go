package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeInvalidArgument = "invalid_argument"
	ErrCodeJoinRequired    = "join_required"
	ErrCodeBadRequest      = "bad_request"
)

var (
	// ErrInvalidArgument marks a request rejected before any mutation took
	// place (missing room_id/player_id, malformed coordinates).
	ErrInvalidArgument = errors.New("invalid argument")
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
