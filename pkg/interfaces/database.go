package interfaces

import (
	"context"

	"liveclass/pkg/types"
)

// DatabaseManager handles all persistence operations
// The session ledger and the analytics event log share one single-writer store
type DatabaseManager interface {
	// CreateSession records a newly created session
	CreateSession(ctx context.Context, session *types.Session) error

	// GetSession retrieves a session record by ID
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)

	// UpdateSession persists status, settings and end fields
	UpdateSession(ctx context.Context, session *types.Session) error

	// ListActiveSessions returns records not yet marked ended
	ListActiveSessions(ctx context.Context) ([]*types.Session, error)

	AnalyticsSink

	// GetAnalyticsEvents returns a session's analytics log in timestamp order
	GetAnalyticsEvents(ctx context.Context, sessionID string) ([]*types.AnalyticsEvent, error)

	// HealthCheck verifies database connectivity
	HealthCheck(ctx context.Context) error

	// Close closes the database connection and cleans up resources
	Close() error
}
