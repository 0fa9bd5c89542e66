package interfaces

import (
	"fmt"

	"liveclass/pkg/types"
)

// Common interface errors used across components
var (
	ErrSessionNotFound = fmt.Errorf("%w: session not found", types.ErrNotFound)
	ErrUnauthorized    = fmt.Errorf("%w: unauthorized access", types.ErrAuthorization)
)
