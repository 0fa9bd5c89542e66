package interfaces

import (
	"context"

	"liveclass/pkg/types"
)

// SessionRegistry creates, ends and validates live sessions
type SessionRegistry interface {
	// CreateSession starts a coordinator for hostID
	// Fails with types.ErrCapacity when the host already runs the maximum
	CreateSession(ctx context.Context, hostID string, config types.SessionConfig) (*types.Session, error)

	// EndSession ends a session and tears its coordinator down once drained
	EndSession(ctx context.Context, sessionID string, reason string) error

	// ValidateSession is the reconnect primitive: false means discard cached state
	ValidateSession(sessionID string) bool

	// ListActive returns summaries of every session not yet ended
	ListActive() []types.SessionSummary
}

// CommandRouter turns inbound envelopes into session operations
// Returned messages go back to the sender only
type CommandRouter interface {
	Route(ctx context.Context, conn Connection, envelope *types.Envelope) []*types.OutboundMessage
}
