package types

import (
	"encoding/json"
	"time"
)

// Inbound event names (client -> server)
const (
	EventCreateSession         = "create-session"
	EventJoinSession           = "join-session"
	EventLeaveSession          = "leave-session"
	EventEndSession            = "end-session"
	EventCodeUpdate            = "code-update"
	EventRunCode               = "run-code"
	EventSendMessage           = "send-message"
	EventBroadcastMessage      = "broadcast-message"
	EventRaiseHand             = "raise-hand"
	EventLowerHand             = "lower-hand"
	EventCreatePoll            = "create-poll"
	EventEndPoll               = "end-poll"
	EventPollResponse          = "poll-response"
	EventCreateBreakoutRooms   = "create-breakout-rooms"
	EventUpdateSessionSettings = "update-session-settings"
	EventStartRecording        = "start-recording"
	EventStopRecording         = "stop-recording"
	EventToggleRecording       = "toggle-recording"
	EventValidateSession       = "validate-session"
)

// Outbound event names (server -> client)
// broadcast-message and poll-response are shared with the inbound set
const (
	EventSessionCreated         = "session-created"
	EventSessionUpdated         = "session-updated"
	EventSessionEnded           = "session-ended"
	EventSessionValidated       = "session-validated"
	EventParticipantJoined      = "participant-joined"
	EventParticipantLeft        = "participant-left"
	EventHandRaised             = "hand-raised"
	EventHandLowered            = "hand-lowered"
	EventNewMessage             = "new-message"
	EventCodeUpdated            = "code-updated"
	EventCodeExecutionResult    = "code-execution-result"
	EventPollCreated            = "poll-created"
	EventPollEnded              = "poll-ended"
	EventBreakoutRoomsCreated   = "breakout-rooms-created"
	EventSessionSettingsUpdated = "session-settings-updated"
	EventRecordingStarted       = "recording-started"
	EventRecordingStopped       = "recording-stopped"
	EventAnalyticsUpdate        = "analytics-update"
	EventError                  = "error"
)

// Envelope is the inbound frame read from a gateway connection
type Envelope struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// OutboundMessage is the frame written to a gateway connection
type OutboundMessage struct {
	Event     string      `json:"event"`
	SessionID string      `json:"session_id,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorPayload is the body of an error event
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionEndedPayload carries the reason a session ended
type SessionEndedPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// HandPayload is the body of hand-raised / hand-lowered
type HandPayload struct {
	UserID string   `json:"user_id"`
	Queue  []string `json:"queue"`
}

// ValidatePayload answers validate-session
type ValidatePayload struct {
	SessionID string `json:"session_id"`
	Valid     bool   `json:"valid"`
}

// SessionSnapshot is what a client keeps locally to resume a session
// after a restart; it must be validated before it is trusted
type SessionSnapshot struct {
	SessionID string    `json:"session_id" toml:"session_id"`
	Role      Role      `json:"role" toml:"role"`
	JoinedAt  time.Time `json:"joined_at" toml:"joined_at"`
}
