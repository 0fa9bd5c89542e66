package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// WebSocket upgrader with production-ready settings
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins, the bearer token is the access control
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// TokenVerifier resolves a bearer token into an identity
type TokenVerifier interface {
	Verify(token string) (types.Identity, error)
}

// DisconnectListener is told when a connection's read pump exits
type DisconnectListener interface {
	ConnectionClosed(conn interfaces.Connection)
}

// HandlerConfig holds heartbeat and frame settings
type HandlerConfig struct {
	PingInterval    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	BufferSize      int
	MaxMessageBytes int64
}

// Handler is the connection gateway: it authenticates the upgrade,
// registers the connection and feeds inbound frames to the router
type Handler struct {
	registry *Registry
	verifier TokenVerifier
	router   interfaces.CommandRouter
	listener DisconnectListener // may be nil
	cfg      HandlerConfig
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(registry *Registry, verifier TokenVerifier, router interfaces.CommandRouter, listener DisconnectListener, cfg HandlerConfig) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 2 << 20
	}
	return &Handler{
		registry: registry,
		verifier: verifier,
		router:   router,
		listener: listener,
		cfg:      cfg,
	}
}

// BearerToken extracts a token from the Authorization header or the
// token query parameter (browsers cannot set headers on upgrades)
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// HandleWebSocket authenticates and upgrades a connection request
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		http.Error(w, ErrMissingToken.Error(), http.StatusUnauthorized)
		return
	}
	identity, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	// Upgrade only after authentication so invalid requests get a plain HTTP error
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, ConnectionConfig{
		BufferSize:   h.cfg.BufferSize,
		WriteTimeout: h.cfg.WriteTimeout,
	})
	if err := wsConn.SetCredentials(identity); err != nil {
		log.Printf("Failed to set credentials: %v", err)
		_ = wsConn.Close()
		return
	}
	if err := h.registry.RegisterConnection(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	log.Printf("Connection opened: user=%s role=%s", identity.UserID, identity.Role)
	go h.handleConnection(wsConn)
}

// handleConnection runs the heartbeat and the read pump until the
// connection drops
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registry.UnregisterConnection(conn)
		if h.listener != nil {
			h.listener.ConnectionClosed(conn)
		}
		_ = conn.Close()
		log.Printf("Connection closed: user=%s session=%s", conn.GetUserID(), conn.GetSessionID())
	}()

	conn.conn.SetReadLimit(h.cfg.MaxMessageBytes)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: user=%s error=%v", conn.GetUserID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatch(conn, data)
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

// dispatch decodes one frame and writes the router's replies back to the sender
func (h *Handler) dispatch(conn *Connection, data []byte) {
	var envelope types.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Event == "" {
		h.reply(conn, ErrorMessage(envelope.RequestID, "", errors.New("malformed envelope"), types.CodeValidation))
		return
	}

	for _, msg := range h.router.Route(context.Background(), conn, &envelope) {
		h.reply(conn, msg)
	}
}

func (h *Handler) reply(conn *Connection, msg *types.OutboundMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Failed to reply to %s: %v", conn.GetUserID(), err)
	}
}

// ErrorMessage builds an error frame. An empty code is derived from err.
func ErrorMessage(requestID, sessionID string, err error, code string) *types.OutboundMessage {
	if code == "" {
		code = types.ErrorCode(err)
	}
	return &types.OutboundMessage{
		Event:     types.EventError,
		SessionID: sessionID,
		RequestID: requestID,
		Payload:   types.ErrorPayload{Code: code, Message: err.Error()},
		Timestamp: time.Now(),
	}
}
