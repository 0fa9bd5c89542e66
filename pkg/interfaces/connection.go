package interfaces

import "liveclass/pkg/types"

// Connection represents an authenticated transport connection
// Implementations must serialize writes, WriteJSON is called from several goroutines
type Connection interface {
	// WriteJSON sends a JSON frame to the client
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its goroutines
	Close() error

	// GetUserID returns the authenticated user's ID
	GetUserID() string

	// GetDisplayName returns the name shown to other participants
	GetDisplayName() string

	// GetRole returns the user's role ("student" or "instructor")
	GetRole() types.Role

	// GetSessionID returns the session this connection is bound to, or ""
	GetSessionID() string

	// SetSessionID binds the connection to a session after a successful join
	SetSessionID(sessionID string)

	// IsAuthenticated returns true once credentials are set
	IsAuthenticated() bool

	// SetCredentials records the identity resolved during the handshake
	SetCredentials(identity types.Identity) error
}
