package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"liveclass/internal/coordinator"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// End reasons set by the registry
const (
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
	ReasonRestart  = "server-restart"
)

const defaultSessionName = "Live session"

// Config holds registry policy
type Config struct {
	MaxPerHost             int // 0 means unlimited
	IdleTimeout            time.Duration
	ReapInterval           time.Duration
	MaxDocumentBytes       int
	DefaultMaxParticipants int
	ExecutionTimeout       time.Duration // bounds one sandbox call
}

// Dependencies are handed to every coordinator the registry creates
type Dependencies struct {
	Publisher coordinator.Publisher
	Executor  interfaces.Executor
	Forwarder coordinator.Forwarder
	Clock     func() time.Time
}

// Manager is the session registry. It owns the only state shared across
// sessions: the id -> coordinator map.
type Manager struct {
	dbManager interfaces.DatabaseManager // nil keeps the registry in memory
	cfg       Config
	deps      Dependencies
	tracer    trace.Tracer

	mu       sync.RWMutex
	sessions map[string]*coordinator.Coordinator
	perHost  map[string]int // hostID -> live sessions
}

// NewManager creates a new session registry
func NewManager(dbManager interfaces.DatabaseManager, cfg Config, deps Dependencies) *Manager {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Manager{
		dbManager: dbManager,
		cfg:       cfg,
		deps:      deps,
		tracer:    otel.Tracer("liveclass/session"),
		sessions:  make(map[string]*coordinator.Coordinator),
		perHost:   make(map[string]int),
	}
}

// RecoverSessions marks sessions a previous process left open as ended.
// Coordinators live in memory only, so those sessions cannot be resumed;
// clients find out through validate-session.
func (m *Manager) RecoverSessions(ctx context.Context) error {
	if m.dbManager == nil {
		return nil
	}
	stale, err := m.dbManager.ListActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active sessions: %w", err)
	}

	now := m.deps.Clock()
	for _, s := range stale {
		s.Status = types.StatusEnded
		s.EndTime = &now
		s.EndReason = ReasonRestart
		if err := m.dbManager.UpdateSession(ctx, s); err != nil {
			return fmt.Errorf("failed to close stale session %s: %w", s.ID, err)
		}
	}

	log.Printf("Closed %d stale sessions from previous run", len(stale))
	return nil
}

// CreateSession starts a coordinator for hostID
func (m *Manager) CreateSession(ctx context.Context, hostID string, config types.SessionConfig) (*types.Session, error) {
	ctx, span := m.tracer.Start(ctx, "session.create", trace.WithAttributes(attribute.String("host.id", hostID)))
	defer span.End()

	// Validate input parameters
	if !types.IsValidUserID(hostID) {
		return nil, ErrInvalidHostID
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	settings := types.DefaultSettings()
	settings.MaxParticipants = m.cfg.DefaultMaxParticipants
	if config.Settings != nil {
		settings = settings.Merge(*config.Settings)
	}
	name := config.Name
	if name == "" {
		name = defaultSessionName
	}

	session := &types.Session{
		ID:        uuid.New().String(),
		Name:      name,
		HostID:    hostID,
		Status:    types.StatusCreated,
		Settings:  settings,
		StartTime: m.deps.Clock(),
	}

	coord := coordinator.New(*session, config.Password, coordinator.Options{
		Publisher:        m.deps.Publisher,
		Executor:         m.deps.Executor,
		Forwarder:        m.deps.Forwarder,
		MaxDocumentBytes: m.cfg.MaxDocumentBytes,
		ExecutionTimeout: m.cfg.ExecutionTimeout,
		Clock:            m.deps.Clock,
		OnEnded:          m.reclaim,
	})

	// capacity check and insert under one lock so concurrent creates by
	// the same host cannot both pass
	m.mu.Lock()
	if m.cfg.MaxPerHost > 0 && m.perHost[hostID] >= m.cfg.MaxPerHost {
		m.mu.Unlock()
		return nil, ErrHostSessionLimit
	}
	m.sessions[session.ID] = coord
	m.perHost[hostID]++
	m.mu.Unlock()

	// Persist to database
	if m.dbManager != nil {
		if err := m.dbManager.CreateSession(ctx, session); err != nil {
			m.mu.Lock()
			m.removeLocked(session.ID, hostID)
			m.mu.Unlock()
			coord.Close()
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	}

	coord.Start()
	span.SetAttributes(attribute.String("session.id", session.ID))
	log.Printf("Created session: id=%s name=%s host=%s", session.ID, session.Name, hostID)
	return session, nil
}

// removeLocked drops a session from the map and its host's count.
// m.mu must be held.
func (m *Manager) removeLocked(sessionID, hostID string) {
	delete(m.sessions, sessionID)
	if m.perHost[hostID] <= 1 {
		delete(m.perHost, hostID)
		return
	}
	m.perHost[hostID]--
}

// Lookup returns the coordinator of a live session
func (m *Manager) Lookup(sessionID string) (*coordinator.Coordinator, error) {
	m.mu.RLock()
	coord, exists := m.sessions[sessionID]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrSessionNotFound
	}
	return coord, nil
}

// GetSession returns a live session, falling back to the ledger for
// sessions that already ended
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	if coord, err := m.Lookup(sessionID); err == nil {
		s := coord.Session()
		return &s, nil
	}
	if m.dbManager == nil {
		return nil, ErrSessionNotFound
	}
	return m.dbManager.GetSession(ctx, sessionID)
}

// EndSession ends a session on behalf of the system and waits for its
// coordinator to drain
func (m *Manager) EndSession(ctx context.Context, sessionID string, reason string) error {
	ctx, span := m.tracer.Start(ctx, "session.end", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("reason", reason),
	))
	defer span.End()

	coord, err := m.Lookup(sessionID)
	if err != nil {
		return err
	}
	if _, err := coord.Apply(ctx, coordinator.Terminate(reason)); err != nil {
		if errors.Is(err, coordinator.ErrSessionEnded) {
			return ErrSessionAlreadyEnded
		}
		return err
	}
	return nil
}

// reclaim removes an ended coordinator and records the end. It runs from
// the coordinator's OnEnded hook and only acts the first time.
func (m *Manager) reclaim(session types.Session) {
	m.mu.Lock()
	coord, exists := m.sessions[session.ID]
	if exists {
		m.removeLocked(session.ID, session.HostID)
	}
	m.mu.Unlock()
	if !exists {
		return
	}

	coord.Close()

	if m.dbManager != nil {
		if err := m.dbManager.UpdateSession(context.Background(), &session); err != nil {
			log.Printf("Failed to record end of session %s: %v", session.ID, err)
		}
	}
	log.Printf("Reclaimed session: id=%s reason=%s", session.ID, session.EndReason)
}

// ValidateSession reports whether a client may resume sessionID
func (m *Manager) ValidateSession(sessionID string) bool {
	coord, err := m.Lookup(sessionID)
	if err != nil {
		return false
	}
	return coord.Session().Status != types.StatusEnded
}

// ListActive returns summaries of live sessions, oldest first
func (m *Manager) ListActive() []types.SessionSummary {
	m.mu.RLock()
	coords := make([]*coordinator.Coordinator, 0, len(m.sessions))
	for _, c := range m.sessions {
		coords = append(coords, c)
	}
	m.mu.RUnlock()

	summaries := make([]types.SessionSummary, 0, len(coords))
	for _, c := range coords {
		s := c.Summary()
		if s.Status == types.StatusEnded {
			continue
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].StartTime.Equal(summaries[j].StartTime) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].StartTime.Before(summaries[j].StartTime)
	})
	return summaries
}

// Leave removes userID from a session. Used when a dropped connection
// does not come back within the grace period.
func (m *Manager) Leave(ctx context.Context, sessionID, userID string) error {
	coord, err := m.Lookup(sessionID)
	if err != nil {
		return err
	}
	_, err = coord.Apply(ctx, coordinator.Leave{UserID: userID})
	return err
}

// Analytics returns a session's analytics log. Live sessions answer from
// memory, ended ones from the ledger.
func (m *Manager) Analytics(ctx context.Context, sessionID string) ([]types.AnalyticsEvent, error) {
	if coord, err := m.Lookup(sessionID); err == nil {
		return coord.Analytics(), nil
	}
	if m.dbManager == nil {
		return nil, ErrSessionNotFound
	}
	if _, err := m.dbManager.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	stored, err := m.dbManager.GetAnalyticsEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	events := make([]types.AnalyticsEvent, 0, len(stored))
	for _, ev := range stored {
		events = append(events, *ev)
	}
	return events, nil
}

// ReapIdle ends every session that has had no participants for at least
// the idle timeout and returns how many it ended
func (m *Manager) ReapIdle(ctx context.Context) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	now := m.deps.Clock()

	m.mu.RLock()
	var idle []string
	for id, c := range m.sessions {
		if since, ok := c.IdleSince(); ok && now.Sub(since) >= m.cfg.IdleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	reaped := 0
	for _, id := range idle {
		coord, err := m.Lookup(id)
		if err != nil {
			continue
		}
		// re-checked under the session lock, a join may have raced us
		if _, err := coord.Apply(ctx, coordinator.ReapIfIdle{IdleFor: m.cfg.IdleTimeout, Reason: ReasonIdle}); err != nil {
			continue
		}
		reaped++
	}
	if reaped > 0 {
		log.Printf("Reaped %d idle sessions", reaped)
	}
	return reaped
}

// RunReaper calls ReapIdle every reap interval until ctx is done
func (m *Manager) RunReaper(ctx context.Context) {
	if m.cfg.IdleTimeout <= 0 || m.cfg.ReapInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ReapIdle(ctx)
		}
	}
}

// Shutdown ends every live session
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.EndSession(ctx, id, ReasonShutdown); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Printf("Failed to end session %s on shutdown: %v", id, err)
		}
	}
	log.Printf("Ended %d sessions on shutdown", len(ids))
}
