package types

import "errors"

// Error taxonomy shared by every component
// Concrete errors wrap one of these so callers can branch with errors.Is
var (
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("authorization error")
	ErrCapacity      = errors.New("capacity error")
	ErrNotFound      = errors.New("not found")
	ErrState         = errors.New("state error")
	ErrConnection    = errors.New("connection error")
)

// Field validation errors
var (
	ErrInvalidUserID       = errors.New("user ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidSessionName  = errors.New("session name must be at most 200 characters")
	ErrInvalidRole         = errors.New("invalid role: must be 'student' or 'instructor'")
	ErrInvalidVisibility   = errors.New("code visibility must be 'all' or 'instructors'")
	ErrInvalidMaxPartic    = errors.New("max participants cannot be negative")
	ErrEmptyBody           = errors.New("message body cannot be empty")
	ErrBodyTooLarge        = errors.New("message body exceeds 16KB limit")
	ErrInvalidPollQuestion = errors.New("poll question must be 1-500 characters")
	ErrInvalidPollOptions  = errors.New("poll needs 2-10 distinct non-empty options")
)

// Wire error codes
const (
	CodeValidation    = "validation_error"
	CodeAuthorization = "authorization_error"
	CodeCapacity      = "capacity_error"
	CodeNotFound      = "not_found"
	CodeState         = "state_error"
	CodeConnection    = "connection_error"
	CodeInternal      = "internal_error"
)

// ErrorCode maps an error onto its wire code
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrAuthorization):
		return CodeAuthorization
	case errors.Is(err, ErrCapacity):
		return CodeCapacity
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrState):
		return CodeState
	case errors.Is(err, ErrConnection):
		return CodeConnection
	default:
		return CodeInternal
	}
}
