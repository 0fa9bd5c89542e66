package session

import (
	"fmt"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Registry error types
var (
	ErrInvalidHostID       = fmt.Errorf("%w: host ID must be a valid user ID", types.ErrValidation)
	ErrHostSessionLimit    = fmt.Errorf("%w: host already runs the maximum number of sessions", types.ErrCapacity)
	ErrSessionNotFound     = interfaces.ErrSessionNotFound
	ErrSessionAlreadyEnded = fmt.Errorf("%w: session is already ended", types.ErrState)
)
