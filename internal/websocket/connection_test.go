package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Test WebSocket upgrader for creating test connections
var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestConnection_InterfaceCompliance(t *testing.T) {
	var _ interfaces.Connection = &Connection{}
}

func TestConnection_NewConnectionInitialization(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn, ConnectionConfig{})
	defer conn.Close()

	assert.Equal(t, defaultBufferSize, cap(conn.writeCh))
	assert.Equal(t, defaultWriteTimeout, conn.writeTimeout)
	assert.False(t, conn.IsAuthenticated())
	assert.Empty(t, conn.GetSessionID())
}

func TestConnection_AuthenticationFlow(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn, ConnectionConfig{BufferSize: 8})
	defer conn.Close()

	err := conn.SetCredentials(types.Identity{UserID: "bad id", Role: types.RoleStudent})
	assert.Error(t, err)
	assert.False(t, conn.IsAuthenticated())

	err = conn.SetCredentials(types.Identity{UserID: "alice", Role: "admin"})
	assert.Error(t, err)

	require.NoError(t, conn.SetCredentials(types.Identity{UserID: "alice", DisplayName: "Alice", Role: types.RoleStudent}))
	assert.True(t, conn.IsAuthenticated())
	assert.Equal(t, "alice", conn.GetUserID())
	assert.Equal(t, "Alice", conn.GetDisplayName())
	assert.Equal(t, types.RoleStudent, conn.GetRole())

	conn.SetSessionID("sess-1")
	assert.Equal(t, "sess-1", conn.GetSessionID())
}

func TestConnection_WriteJSONDelivers(t *testing.T) {
	wsConn, received := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn, ConnectionConfig{})
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "ping"}))

	select {
	case msg := <-received:
		assert.JSONEq(t, `{"event":"ping"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestConnection_WriteJSONInvalidData(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn, ConnectionConfig{})
	defer conn.Close()

	err := conn.WriteJSON(make(chan int))
	assert.Equal(t, ErrInvalidJSON, err)
}

func TestConnection_CloseIdempotent(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn, ConnectionConfig{})

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}

func TestConnection_WriteAfterClose(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn, ConnectionConfig{})
	require.NoError(t, conn.Close())

	err := conn.WriteJSON(map[string]string{"event": "late"})
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, err, types.ErrConnection)
}

func TestConnection_ConcurrentWrites(t *testing.T) {
	wsConn, received := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn, ConnectionConfig{})
	defer conn.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				assert.NoError(t, conn.WriteJSON(map[string]int{"writer": id, "seq": j}))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of 50 messages arrived", i)
		}
	}
}

func TestConnection_ConcurrentCredentialAccess(t *testing.T) {
	wsConn, _ := createTestWebSocketConnection(t)
	conn := NewConnection(wsConn, ConnectionConfig{})
	defer conn.Close()
	require.NoError(t, conn.SetCredentials(types.Identity{UserID: "alice", Role: types.RoleStudent}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			conn.SetSessionID("sess-1")
		}()
		go func() {
			defer wg.Done()
			_ = conn.GetSessionID()
			_ = conn.GetUserID()
			_ = conn.GetRole()
		}()
	}
	wg.Wait()
	assert.Equal(t, "sess-1", conn.GetSessionID())
}

// createTestWebSocketConnection dials an echo-less test server and returns
// the client side plus a channel of frames the server received
func createTestWebSocketConnection(t *testing.T) (*websocket.Conn, <-chan []byte) {
	t.Helper()
	received := make(chan []byte, 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn, received
}
