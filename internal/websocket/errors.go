package websocket

import (
	"errors"
	"fmt"

	"liveclass/pkg/types"
)

// Connection-related errors
var (
	ErrConnectionClosed = fmt.Errorf("%w: connection closed", types.ErrConnection)
	ErrWriteTimeout     = fmt.Errorf("%w: write timeout", types.ErrConnection)
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Registry-related errors
var (
	ErrNilConnection              = errors.New("connection cannot be nil")
	ErrConnectionNotAuthenticated = errors.New("connection must be authenticated before registration")
	ErrEmptySessionID             = errors.New("session ID cannot be empty")
)

// Handler-related errors
var (
	ErrMissingToken = errors.New("missing bearer token")
)
