package api

import (
	"errors"
	"fmt"

	"liveclass/pkg/types"
)

var (
	ErrMissingToken = fmt.Errorf("%w: missing bearer token", types.ErrAuthorization)
	ErrNotHost      = fmt.Errorf("%w: only the host may end this session", types.ErrAuthorization)
	ErrInvalidJSON  = fmt.Errorf("%w: invalid JSON body", types.ErrValidation)
	errUnauthorized = errors.New("unauthorized")
)
