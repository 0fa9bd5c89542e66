package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"liveclass/internal/coordinator"
	"liveclass/internal/session"
	"liveclass/internal/websocket"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Sessions is the registry surface the REST API exposes
type Sessions interface {
	interfaces.SessionRegistry
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)
	Analytics(ctx context.Context, sessionID string) ([]types.AnalyticsEvent, error)
}

// Registry is the connection registry surface used for counts and health
type Registry interface {
	GetSessionConnections(sessionID string) []interfaces.Connection
	GetStats() map[string]int
}

// Server is the HTTP layer: it authenticates, decodes and maps errors,
// all session behavior lives in the registry and coordinators
type Server struct {
	sessions  Sessions
	dbManager interfaces.DatabaseManager // nil when running without a ledger
	registry  Registry
	verifier  websocket.TokenVerifier
	router    *mux.Router
	started   time.Time
}

// NewServer creates the REST server and its routes
func NewServer(sessions Sessions, dbManager interfaces.DatabaseManager, registry Registry, verifier websocket.TokenVerifier) *Server {
	s := &Server{
		sessions:  sessions,
		dbManager: dbManager,
		registry:  registry,
		verifier:  verifier,
		router:    mux.NewRouter(),
		started:   time.Now(),
	}
	s.setupRoutes()
	return s
}

type contextKey string

const identityKey contextKey = "identity"

func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware)

	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(jsonMiddleware)
	api.Use(s.requireIdentity)

	api.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions", s.listSessions).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/sessions/{id}", s.endSession).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/validate", s.validateSession).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/analytics", s.sessionAnalytics).Methods(http.MethodGet, http.MethodOptions)
}

// Mount attaches h at path, outside the /api auth middleware. The
// gateway authenticates its own upgrades.
func (s *Server) Mount(path string, h http.Handler) {
	s.router.Handle(path, h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/Response types for JSON serialization
type CreateSessionRequest struct {
	Name     string               `json:"name"`
	Password string               `json:"password,omitempty"`
	Settings *types.SettingsPatch `json:"settings,omitempty"`
}

type SessionResponse struct {
	Session         *types.Session `json:"session"`
	ConnectionCount int            `json:"connection_count"`
}

type ListSessionsResponse struct {
	Sessions []types.SessionSummary `json:"sessions"`
}

type AnalyticsResponse struct {
	SessionID string                 `json:"session_id"`
	Events    []types.AnalyticsEvent `json:"events"`
}

type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Database    string                 `json:"database"`
	Sessions    int                    `json:"sessions"`
	Connections map[string]int         `json:"connections"`
	System      map[string]interface{} `json:"system"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// POST /api/sessions
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	if identity.Role != types.RoleInstructor {
		s.sendError(w, fmt.Errorf("%w: only instructors can create sessions", types.ErrAuthorization))
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, ErrInvalidJSON)
		return
	}

	created, err := s.sessions.CreateSession(r.Context(), identity.UserID, types.SessionConfig{
		Name:     req.Name,
		Password: req.Password,
		Settings: req.Settings,
	})
	if err != nil {
		s.sendError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, SessionResponse{Session: created})
}

// GET /api/sessions
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.ListActive()
	if sessions == nil {
		sessions = []types.SessionSummary{}
	}
	s.writeJSON(w, http.StatusOK, ListSessionsResponse{Sessions: sessions})
}

// GET /api/sessions/{id}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	found, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{
		Session:         found,
		ConnectionCount: len(s.registry.GetSessionConnections(sessionID)),
	})
}

// DELETE /api/sessions/{id}
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	identity := identityFrom(r.Context())

	current, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		s.sendError(w, err)
		return
	}
	if current.HostID != identity.UserID {
		s.sendError(w, ErrNotHost)
		return
	}
	if current.Status == types.StatusEnded {
		s.sendError(w, session.ErrSessionAlreadyEnded)
		return
	}

	// members are notified by the coordinator's session-ended event
	if err := s.sessions.EndSession(r.Context(), sessionID, coordinator.ReasonEnded); err != nil {
		s.sendError(w, err)
		return
	}
	log.Printf("Session ended over REST: id=%s by=%s", sessionID, identity.UserID)
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Session ended successfully"})
}

// GET /api/sessions/{id}/validate
func (s *Server) validateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	s.writeJSON(w, http.StatusOK, types.ValidatePayload{
		SessionID: sessionID,
		Valid:     s.sessions.ValidateSession(sessionID),
	})
}

// GET /api/sessions/{id}/analytics
func (s *Server) sessionAnalytics(w http.ResponseWriter, r *http.Request) {
	if identityFrom(r.Context()).Role != types.RoleInstructor {
		s.sendError(w, fmt.Errorf("%w: analytics are for instructors", types.ErrAuthorization))
		return
	}
	sessionID := mux.Vars(r)["id"]
	events, err := s.sessions.Analytics(r.Context(), sessionID)
	if err != nil {
		s.sendError(w, err)
		return
	}
	if events == nil {
		events = []types.AnalyticsEvent{}
	}
	s.writeJSON(w, http.StatusOK, AnalyticsResponse{SessionID: sessionID, Events: events})
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "disabled"
	if s.dbManager != nil {
		dbStatus = "healthy"
		if err := s.dbManager.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			dbStatus = fmt.Sprintf("error: %v", err)
		}
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Sessions:    len(s.sessions.ListActive()),
		Connections: s.registry.GetStats(),
		System: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"uptime":     time.Since(s.started).Round(time.Second).String(),
		},
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, code, response)
}

// StatusFor maps an error kind onto an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, types.ErrCapacity):
		return http.StatusConflict
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrState):
		return http.StatusConflict
	case errors.Is(err, types.ErrConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendError(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		log.Printf("REST request failed: %v", err)
		message = "internal error"
	}
	s.writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    types.ErrorCode(err),
		Message: message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// requireIdentity verifies the bearer token and stores the identity on the
// request context
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		token := websocket.BearerToken(r)
		if token == "" {
			s.writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: http.StatusText(http.StatusUnauthorized), Code: types.CodeAuthorization, Message: ErrMissingToken.Error(),
			})
			return
		}
		identity, err := s.verifier.Verify(token)
		if err != nil {
			s.writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: http.StatusText(http.StatusUnauthorized), Code: types.CodeAuthorization, Message: errUnauthorized.Error(),
			})
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) types.Identity {
	if v, ok := ctx.Value(identityKey).(types.Identity); ok {
		return v
	}
	return types.Identity{}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
