package websocket

import (
	"sync"

	"liveclass/pkg/types"
)

// fakeConn is an in-memory interfaces.Connection
type fakeConn struct {
	mu        sync.Mutex
	identity  types.Identity
	sessionID string
	authed    bool
	closed    bool
	written   []interface{}
}

func newFakeConn(userID string, role types.Role) *fakeConn {
	return &fakeConn{identity: types.Identity{UserID: userID, Role: role}, authed: true}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnectionClosed
	}
	f.written = append(f.written, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) GetUserID() string      { return f.identity.UserID }
func (f *fakeConn) GetDisplayName() string { return f.identity.DisplayName }
func (f *fakeConn) GetRole() types.Role    { return f.identity.Role }
func (f *fakeConn) IsAuthenticated() bool  { return f.authed }

func (f *fakeConn) GetSessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}

func (f *fakeConn) SetSessionID(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionID = sessionID
}

func (f *fakeConn) SetCredentials(identity types.Identity) error {
	f.identity = identity
	f.authed = true
	return nil
}
