package router

import (
	"fmt"

	"liveclass/pkg/types"
)

// Router-specific error types
var (
	ErrUnknownEvent      = fmt.Errorf("%w: unknown event", types.ErrValidation)
	ErrMalformedPayload  = fmt.Errorf("%w: malformed payload", types.ErrValidation)
	ErrMissingSessionID  = fmt.Errorf("%w: session_id is required", types.ErrValidation)
	ErrRateLimitExceeded = fmt.Errorf("%w: rate limit exceeded", types.ErrCapacity)
	ErrNotJoined         = fmt.Errorf("%w: join a session first", types.ErrAuthorization)
	ErrSessionMismatch   = fmt.Errorf("%w: connection is joined to a different session", types.ErrAuthorization)
	ErrHostMustInstruct  = fmt.Errorf("%w: only instructors can create sessions", types.ErrAuthorization)
)
