package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"liveclass/internal/coordinator"
	"liveclass/internal/websocket"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Sessions is the slice of the session registry the router needs
type Sessions interface {
	CreateSession(ctx context.Context, hostID string, config types.SessionConfig) (*types.Session, error)
	ValidateSession(sessionID string) bool
	Lookup(sessionID string) (*coordinator.Coordinator, error)
}

// Binder attaches connections to the session whose events they receive
type Binder interface {
	BindSession(conn interfaces.Connection, sessionID string) error
	UnbindSession(conn interfaces.Connection)
}

// Router implements interfaces.CommandRouter. It turns wire envelopes into
// coordinator commands; the coordinator's events reach members through the
// hub, only direct replies and errors are returned here.
type Router struct {
	sessions    Sessions
	binder      Binder
	rateLimiter *RateLimiter
}

// NewRouter creates a new command router
func NewRouter(sessions Sessions, binder Binder, rateLimiter *RateLimiter) *Router {
	if rateLimiter == nil {
		rateLimiter = NewRateLimiter(0)
	}
	return &Router{
		sessions:    sessions,
		binder:      binder,
		rateLimiter: rateLimiter,
	}
}

// Inbound payload shapes
type (
	createSessionPayload struct {
		Name     string               `json:"name"`
		Password string               `json:"password,omitempty"`
		Settings *types.SettingsPatch `json:"settings,omitempty"`
	}
	joinPayload struct {
		Password string `json:"password,omitempty"`
	}
	endPayload struct {
		Reason string `json:"reason,omitempty"`
	}
	codePayload struct {
		Code     string `json:"code"`
		Language string `json:"language,omitempty"`
	}
	messagePayload struct {
		Body string `json:"body"`
	}
	lowerHandPayload struct {
		UserID string `json:"user_id,omitempty"`
	}
	pollPayload struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}
	pollResponsePayload struct {
		PollID string `json:"poll_id"`
		Answer string `json:"answer"`
	}
	endPollPayload struct {
		PollID string `json:"poll_id,omitempty"`
	}
	breakoutPayload struct {
		Rooms []types.BreakoutAssignment `json:"rooms"`
	}
)

// Route handles one envelope from conn
func (r *Router) Route(ctx context.Context, conn interfaces.Connection, env *types.Envelope) []*types.OutboundMessage {
	replies, err := r.route(ctx, conn, env)
	if err != nil {
		sessionID := env.SessionID
		if sessionID == "" {
			sessionID = conn.GetSessionID()
		}
		log.Printf("Command rejected: event=%s user=%s session=%s error=%v", env.Event, conn.GetUserID(), sessionID, err)
		return []*types.OutboundMessage{websocket.ErrorMessage(env.RequestID, sessionID, err, "")}
	}
	for _, reply := range replies {
		reply.RequestID = env.RequestID
		reply.Timestamp = time.Now()
	}
	return replies
}

func (r *Router) route(ctx context.Context, conn interfaces.Connection, env *types.Envelope) ([]*types.OutboundMessage, error) {
	if !r.rateLimiter.Allow(conn.GetUserID()) {
		return nil, ErrRateLimitExceeded
	}

	switch env.Event {
	case types.EventCreateSession:
		return r.createSession(ctx, conn, env)
	case types.EventValidateSession:
		return r.validateSession(env)
	case types.EventJoinSession:
		return nil, r.joinSession(ctx, conn, env)
	}

	cmd, err := decodeCommand(conn.GetUserID(), env)
	if err != nil {
		return nil, err
	}

	sessionID := conn.GetSessionID()
	if sessionID == "" {
		return nil, ErrNotJoined
	}
	if env.SessionID != "" && env.SessionID != sessionID {
		return nil, ErrSessionMismatch
	}
	coord, err := r.sessions.Lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := coord.Apply(ctx, cmd); err != nil {
		return nil, err
	}

	if _, ok := cmd.(coordinator.Leave); ok {
		r.binder.UnbindSession(conn)
	}
	return nil, nil
}

func (r *Router) createSession(ctx context.Context, conn interfaces.Connection, env *types.Envelope) ([]*types.OutboundMessage, error) {
	if conn.GetRole() != types.RoleInstructor {
		return nil, ErrHostMustInstruct
	}
	var p createSessionPayload
	if err := decode(env.Payload, &p); err != nil {
		return nil, err
	}

	session, err := r.sessions.CreateSession(ctx, conn.GetUserID(), types.SessionConfig{
		Name:     p.Name,
		Password: p.Password,
		Settings: p.Settings,
	})
	if err != nil {
		return nil, err
	}
	return []*types.OutboundMessage{{
		Event:     types.EventSessionCreated,
		SessionID: session.ID,
		Payload:   session,
	}}, nil
}

func (r *Router) validateSession(env *types.Envelope) ([]*types.OutboundMessage, error) {
	if env.SessionID == "" {
		return nil, ErrMissingSessionID
	}
	return []*types.OutboundMessage{{
		Event:     types.EventSessionValidated,
		SessionID: env.SessionID,
		Payload: types.ValidatePayload{
			SessionID: env.SessionID,
			Valid:     r.sessions.ValidateSession(env.SessionID),
		},
	}}, nil
}

// joinSession binds the connection before applying the join so the
// joiner's snapshot event finds it. A failed join restores the old binding.
func (r *Router) joinSession(ctx context.Context, conn interfaces.Connection, env *types.Envelope) error {
	if env.SessionID == "" {
		return ErrMissingSessionID
	}
	var p joinPayload
	if err := decode(env.Payload, &p); err != nil {
		return err
	}
	coord, err := r.sessions.Lookup(env.SessionID)
	if err != nil {
		return err
	}

	prev := conn.GetSessionID()
	if err := r.binder.BindSession(conn, env.SessionID); err != nil {
		return err
	}

	_, err = coord.Apply(ctx, coordinator.Join{
		UserID:      conn.GetUserID(),
		DisplayName: conn.GetDisplayName(),
		Role:        conn.GetRole(),
		Password:    p.Password,
	})
	if err != nil {
		if prev != "" && prev != env.SessionID {
			_ = r.binder.BindSession(conn, prev)
		} else if prev == "" {
			r.binder.UnbindSession(conn)
		}
		return err
	}

	// switching sessions leaves the old one
	if prev != "" && prev != env.SessionID {
		if old, err := r.sessions.Lookup(prev); err == nil {
			if _, err := old.Apply(ctx, coordinator.Leave{UserID: conn.GetUserID()}); err != nil {
				log.Printf("Failed to leave previous session %s for %s: %v", prev, conn.GetUserID(), err)
			}
		}
	}
	return nil
}

// decodeCommand maps an in-session envelope onto its coordinator command
func decodeCommand(userID string, env *types.Envelope) (coordinator.Command, error) {
	switch env.Event {
	case types.EventLeaveSession:
		return coordinator.Leave{UserID: userID}, nil

	case types.EventEndSession:
		var p endPayload
		if err := decode(env.Payload, &p); err != nil {
			return nil, err
		}
		return coordinator.End{UserID: userID, Reason: p.Reason}, nil

	case types.EventCodeUpdate:
		var p codePayload
		if err := decode(env.Payload, &p); err != nil {
			return nil, err
		}
		return coordinator.UpdateCode{UserID: userID, RequestID: env.RequestID, Code: p.Code, Language: p.Language}, nil

	case types.EventRunCode:
		return coordinator.RunCode{UserID: userID}, nil

	case types.EventSendMessage, types.EventBroadcastMessage:
		var p messagePayload
		if err := decode(env.Payload, &p); err != nil {
			return nil, err
		}
		if env.Event == types.EventBroadcastMessage {
			return coordinator.Broadcast{UserID: userID, Body: p.Body}, nil
		}
		return coordinator.SendMessage{UserID: userID, Body: p.Body}, nil

	case types.EventRaiseHand:
		return coordinator.RaiseHand{UserID: userID}, nil

	case types.EventLowerHand:
		var p lowerHandPayload
		if err := decode(env.Payload, &p); err != nil {
			return nil, err
		}
		return coordinator.LowerHand{UserID: userID, TargetID: p.UserID}, nil

	case types.EventCreatePoll:
		var p pollPayload
		if err := decode(env.Payload, &p); err != nil {
			return nil, err
		}
		return coordinator.CreatePoll{UserID: userID, Question: p.Question, Options: p.Options}, nil

	case types.EventPollResponse:
		var p pollResponsePayload
		if err := decode(env.Payload, &p); err != nil {
			return nil, err
		}
		return coordinator.RespondPoll{UserID: userID, PollID: p.PollID, Answer: p.Answer}, nil

	case types.EventEndPoll:
		var p endPollPayload
		if err := decode(env.Payload, &p); err != nil {
			return nil, err
		}
		return coordinator.EndPoll{UserID: userID, PollID: p.PollID}, nil

	case types.EventCreateBreakoutRooms:
		var p breakoutPayload
		if err := decode(env.Payload, &p); err != nil {
			return nil, err
		}
		return coordinator.CreateBreakoutRooms{UserID: userID, Assignment: p.Rooms}, nil

	case types.EventUpdateSessionSettings:
		var p types.SettingsPatch
		if err := decode(env.Payload, &p); err != nil {
			return nil, err
		}
		return coordinator.UpdateSettings{UserID: userID, Patch: p}, nil

	case types.EventStartRecording:
		return coordinator.SetRecording{UserID: userID, On: true}, nil
	case types.EventStopRecording:
		return coordinator.SetRecording{UserID: userID, On: false}, nil
	case types.EventToggleRecording:
		return coordinator.ToggleRecording{UserID: userID}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
