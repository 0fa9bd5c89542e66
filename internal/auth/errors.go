package auth

import (
	"errors"
	"fmt"

	"liveclass/pkg/types"
)

var (
	ErrMissingSecret = errors.New("jwt secret is required")
	ErrInvalidToken  = fmt.Errorf("%w: invalid or expired token", types.ErrAuthorization)
	ErrInvalidClaims = fmt.Errorf("%w: token claims do not describe a participant", types.ErrAuthorization)
)
