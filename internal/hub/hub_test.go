package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"liveclass/internal/coordinator"
	"liveclass/internal/websocket"
	"liveclass/pkg/types"
)

type testConn struct {
	mu        sync.Mutex
	userID    string
	role      types.Role
	sessionID string
	messages  []*types.OutboundMessage
}

func (c *testConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, v.(*types.OutboundMessage))
	return nil
}

func (c *testConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.messages {
		out = append(out, m.Event)
	}
	return out
}

func (c *testConn) Close() error                          { return nil }
func (c *testConn) GetUserID() string                     { return c.userID }
func (c *testConn) GetDisplayName() string                { return c.userID }
func (c *testConn) GetRole() types.Role                   { return c.role }
func (c *testConn) IsAuthenticated() bool                 { return true }
func (c *testConn) SetCredentials(types.Identity) error   { return nil }
func (c *testConn) GetSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}
func (c *testConn) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

type recordingLeaver struct {
	left chan string
}

func (l *recordingLeaver) Leave(ctx context.Context, sessionID, userID string) error {
	l.left <- sessionID + "/" + userID
	return nil
}

func bound(t *testing.T, registry *websocket.Registry, userID string, role types.Role, sessionID string) *testConn {
	t.Helper()
	c := &testConn{userID: userID, role: role}
	require.NoError(t, registry.RegisterConnection(c))
	require.NoError(t, registry.BindSession(c, sessionID))
	return c
}

func TestHub_StartStop(t *testing.T) {
	hub := NewHub(websocket.NewRegistry(), time.Second)
	ctx := context.Background()

	require.NoError(t, hub.Start(ctx, nil))
	assert.Equal(t, ErrHubAlreadyRunning, hub.Start(ctx, nil))
	require.NoError(t, hub.Stop())
	assert.Equal(t, ErrHubNotRunning, hub.Stop())
}

func TestHub_PublishRespectsAudience(t *testing.T) {
	registry := websocket.NewRegistry()
	hub := NewHub(registry, time.Second)

	teacher := bound(t, registry, "teacher", types.RoleInstructor, "s1")
	alice := bound(t, registry, "alice", types.RoleStudent, "s1")
	other := bound(t, registry, "zed", types.RoleStudent, "s2")

	hub.Publish("s1", []coordinator.Event{
		{Name: types.EventParticipantJoined, Audience: coordinator.AudienceAll},
		{Name: types.EventAnalyticsUpdate, Audience: coordinator.AudienceInstructors},
		{Name: types.EventSessionUpdated, Audience: coordinator.AudienceUser, UserID: "alice"},
	})

	assert.Equal(t, []string{types.EventParticipantJoined, types.EventAnalyticsUpdate}, teacher.events())
	assert.Equal(t, []string{types.EventParticipantJoined, types.EventSessionUpdated}, alice.events())
	assert.Empty(t, other.events())

	alice.mu.Lock()
	assert.Equal(t, "s1", alice.messages[0].SessionID)
	alice.mu.Unlock()
}

func TestHub_SessionEndedReleasesConnections(t *testing.T) {
	registry := websocket.NewRegistry()
	hub := NewHub(registry, time.Second)
	alice := bound(t, registry, "alice", types.RoleStudent, "s1")

	hub.Publish("s1", []coordinator.Event{{Name: types.EventSessionEnded}})

	assert.Equal(t, []string{types.EventSessionEnded}, alice.events())
	assert.Empty(t, alice.GetSessionID())
	assert.Empty(t, registry.GetSessionConnections("s1"))
}

func TestHub_DisconnectLeavesAfterGrace(t *testing.T) {
	registry := websocket.NewRegistry()
	hub := NewHub(registry, 50*time.Millisecond)
	leaver := &recordingLeaver{left: make(chan string, 1)}
	require.NoError(t, hub.Start(context.Background(), leaver))
	defer hub.Stop()

	alice := bound(t, registry, "alice", types.RoleStudent, "s1")
	registry.UnregisterConnection(alice)
	hub.ConnectionClosed(alice)

	select {
	case got := <-leaver.left:
		assert.Equal(t, "s1/alice", got)
	case <-time.After(2 * time.Second):
		t.Fatal("leave was not issued after grace period")
	}
}

func TestHub_ReconnectWithinGraceKeepsSlot(t *testing.T) {
	registry := websocket.NewRegistry()
	hub := NewHub(registry, 100*time.Millisecond)
	leaver := &recordingLeaver{left: make(chan string, 1)}
	require.NoError(t, hub.Start(context.Background(), leaver))
	defer hub.Stop()

	old := bound(t, registry, "alice", types.RoleStudent, "s1")
	registry.UnregisterConnection(old)
	hub.ConnectionClosed(old)

	// new connection rejoins the same session
	bound(t, registry, "alice", types.RoleStudent, "s1")

	select {
	case got := <-leaver.left:
		t.Fatalf("unexpected leave %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestHub_UnboundConnectionIgnored(t *testing.T) {
	registry := websocket.NewRegistry()
	hub := NewHub(registry, 0)
	leaver := &recordingLeaver{left: make(chan string, 1)}
	require.NoError(t, hub.Start(context.Background(), leaver))
	defer hub.Stop()

	hub.ConnectionClosed(&testConn{userID: "alice", role: types.RoleStudent})

	select {
	case got := <-leaver.left:
		t.Fatalf("unexpected leave %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}
