package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"liveclass/internal/coordinator"
	"liveclass/internal/websocket"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Leaver removes a participant whose connection did not come back
type Leaver interface {
	Leave(ctx context.Context, sessionID, userID string) error
}

// Hub delivers coordinator events to bound connections and turns dropped
// connections into leaves once the grace period runs out
type Hub struct {
	disconnectChannel chan member
	expiredChannel    chan member
	shutdownChannel   chan struct{}

	registry *websocket.Registry
	leaver   Leaver
	grace    time.Duration

	// owned by the run goroutine
	timers map[member]*time.Timer

	running bool
	mu      sync.RWMutex
}

type member struct {
	sessionID string
	userID    string
}

// NewHub creates a new hub
func NewHub(registry *websocket.Registry, grace time.Duration) *Hub {
	return &Hub{
		disconnectChannel: make(chan member, 100),
		expiredChannel:    make(chan member, 100),
		shutdownChannel:   make(chan struct{}),
		registry:          registry,
		grace:             grace,
		timers:            make(map[member]*time.Timer),
	}
}

// Start begins disconnect processing. leaver is usually the session registry.
func (h *Hub) Start(ctx context.Context, leaver Leaver) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.leaver = leaver
	h.mu.Unlock()

	log.Println("Starting message hub...")
	go h.run(ctx)
	return nil
}

// Stop shuts the hub down; pending grace timers are discarded
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	log.Println("Stopping message hub...")
	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}
	return nil
}

// Publish implements coordinator.Publisher. It is called from one session's
// delivery goroutine at a time, so per-session order is preserved.
func (h *Hub) Publish(sessionID string, events []coordinator.Event) {
	now := time.Now()
	for _, ev := range events {
		msg := &types.OutboundMessage{
			Event:     ev.Name,
			SessionID: sessionID,
			Payload:   ev.Payload,
			Timestamp: now,
		}
		for _, conn := range h.recipients(sessionID, ev) {
			if err := conn.WriteJSON(msg); err != nil {
				// Log error but continue delivery to other recipients
				log.Printf("Failed to deliver %s to %s: %v", ev.Name, conn.GetUserID(), err)
			}
		}
		if ev.Name == types.EventSessionEnded {
			released := h.registry.ReleaseSession(sessionID)
			log.Printf("Released %d connections from ended session %s", released, sessionID)
		}
	}
}

func (h *Hub) recipients(sessionID string, ev coordinator.Event) []interfaces.Connection {
	switch ev.Audience {
	case coordinator.AudienceInstructors:
		return h.registry.GetSessionInstructors(sessionID)
	case coordinator.AudienceUser:
		if conn, ok := h.registry.GetSessionConnection(sessionID, ev.UserID); ok {
			return []interfaces.Connection{conn}
		}
		return nil
	default:
		return h.registry.GetSessionConnections(sessionID)
	}
}

// ConnectionClosed implements websocket.DisconnectListener
func (h *Hub) ConnectionClosed(conn interfaces.Connection) {
	sessionID := conn.GetSessionID()
	if sessionID == "" {
		return
	}

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}

	select {
	case h.disconnectChannel <- member{sessionID: sessionID, userID: conn.GetUserID()}:
	default:
		log.Printf("%v: dropping disconnect of %s from %s", ErrDisconnectQueueFull, conn.GetUserID(), sessionID)
	}
}

// run owns the grace timers
func (h *Hub) run(ctx context.Context) {
	defer log.Println("Hub processing stopped")
	defer func() {
		for _, t := range h.timers {
			t.Stop()
		}
	}()

	for {
		select {
		case m := <-h.disconnectChannel:
			h.startGrace(ctx, m)

		case m := <-h.expiredChannel:
			delete(h.timers, m)
			if h.registry.IsBound(m.sessionID, m.userID) {
				// reconnected within the grace period
				continue
			}
			go h.leave(ctx, m)

		case <-h.shutdownChannel:
			log.Println("Hub shutdown requested")
			return

		case <-ctx.Done():
			log.Println("Hub context cancelled")
			return
		}
	}
}

func (h *Hub) startGrace(ctx context.Context, m member) {
	if h.grace <= 0 {
		go h.leave(ctx, m)
		return
	}
	if t, ok := h.timers[m]; ok {
		t.Stop()
	}
	h.timers[m] = time.AfterFunc(h.grace, func() {
		select {
		case h.expiredChannel <- m:
		case <-h.shutdownChannel:
		case <-ctx.Done():
		}
	})
}

// leave runs outside the hub loop: ending a session on host leave waits
// for that session's delivery goroutine to drain
func (h *Hub) leave(ctx context.Context, m member) {
	h.mu.RLock()
	leaver := h.leaver
	h.mu.RUnlock()
	if leaver == nil {
		return
	}

	if err := leaver.Leave(ctx, m.sessionID, m.userID); err != nil {
		log.Printf("Disconnect leave skipped: user=%s session=%s reason=%v", m.userID, m.sessionID, err)
		return
	}
	log.Printf("Participant left after disconnect: user=%s session=%s", m.userID, m.sessionID)
}
