package interfaces

import (
	"context"
	"encoding/json"

	"liveclass/pkg/types"
)

// Executor forwards code to the external execution sandbox
// The returned result is opaque and relayed verbatim
type Executor interface {
	Execute(ctx context.Context, req types.ExecutionRequest) (json.RawMessage, error)
}
