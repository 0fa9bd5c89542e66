package types

import (
	"encoding/json"
	"time"
)

// Role identifies what a participant may do inside a session
type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// SessionStatus is the coordinator lifecycle state
// Created -> Active -> Ended, Ended is terminal
type SessionStatus string

const (
	StatusCreated SessionStatus = "created"
	StatusActive  SessionStatus = "active"
	StatusEnded   SessionStatus = "ended"
)

// CodeVisibility controls who receives code-updated events
type CodeVisibility string

const (
	CodeVisibilityAll         CodeVisibility = "all"
	CodeVisibilityInstructors CodeVisibility = "instructors"
)

// Settings are the host-controlled switches of a session
type Settings struct {
	AllowStudentCode bool           `json:"allow_student_code"`
	AllowChat        bool           `json:"allow_chat"`
	AllowHandRaise   bool           `json:"allow_hand_raise"`
	EnableRecording  bool           `json:"enable_recording"`
	MaxParticipants  int            `json:"max_participants"` // 0 means unlimited
	CodeVisibility   CodeVisibility `json:"code_visibility"`
	FocusMode        bool           `json:"focus_mode"`
}

// DefaultSettings returns the settings a session starts with when the host
// does not override them
func DefaultSettings() Settings {
	return Settings{
		AllowStudentCode: false,
		AllowChat:        true,
		AllowHandRaise:   true,
		EnableRecording:  true,
		MaxParticipants:  0,
		CodeVisibility:   CodeVisibilityAll,
		FocusMode:        false,
	}
}

// SettingsPatch is a partial settings update, nil fields are left untouched
type SettingsPatch struct {
	AllowStudentCode *bool           `json:"allow_student_code,omitempty"`
	AllowChat        *bool           `json:"allow_chat,omitempty"`
	AllowHandRaise   *bool           `json:"allow_hand_raise,omitempty"`
	EnableRecording  *bool           `json:"enable_recording,omitempty"`
	MaxParticipants  *int            `json:"max_participants,omitempty"`
	CodeVisibility   *CodeVisibility `json:"code_visibility,omitempty"`
	FocusMode        *bool           `json:"focus_mode,omitempty"`
}

// Merge returns a copy of s with every non-nil field of p applied
func (s Settings) Merge(p SettingsPatch) Settings {
	if p.AllowStudentCode != nil {
		s.AllowStudentCode = *p.AllowStudentCode
	}
	if p.AllowChat != nil {
		s.AllowChat = *p.AllowChat
	}
	if p.AllowHandRaise != nil {
		s.AllowHandRaise = *p.AllowHandRaise
	}
	if p.EnableRecording != nil {
		s.EnableRecording = *p.EnableRecording
	}
	if p.MaxParticipants != nil {
		s.MaxParticipants = *p.MaxParticipants
	}
	if p.CodeVisibility != nil {
		s.CodeVisibility = *p.CodeVisibility
	}
	if p.FocusMode != nil {
		s.FocusMode = *p.FocusMode
	}
	return s
}

// Session represents one live classroom instance
// Only status, settings and end fields change after creation
type Session struct {
	ID        string        `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	HostID    string        `json:"host_id" db:"host_id"`
	Status    SessionStatus `json:"status" db:"status"`
	Settings  Settings      `json:"settings" db:"settings"`
	StartTime time.Time     `json:"start_time" db:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty" db:"end_time"`
	EndReason string        `json:"end_reason,omitempty" db:"end_reason"`
}

// SessionConfig is what the host supplies when creating a session
type SessionConfig struct {
	Name     string         `json:"name"`
	Password string         `json:"password,omitempty"`
	Settings *SettingsPatch `json:"settings,omitempty"`
}

// SessionSummary is the listActive view of a running session
type SessionSummary struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	HostID           string        `json:"host_id"`
	Status           SessionStatus `json:"status"`
	ParticipantCount int           `json:"participant_count"`
	HasPassword      bool          `json:"has_password"`
	StartTime        time.Time     `json:"start_time"`
}

// Participant is one roster slot
type Participant struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
	HandRaised  bool      `json:"hand_raised"`
}

// SharedDocument is the session's single code buffer
// Version is assigned by the coordinator, never by clients
type SharedDocument struct {
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	UpdatedBy string    `json:"updated_by"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageKind distinguishes participant chat from host broadcasts
type MessageKind string

const (
	MessageKindChat      MessageKind = "chat"
	MessageKindBroadcast MessageKind = "broadcast"
)

// Message is append-only and never mutated after creation
type Message struct {
	ID        string      `json:"id"`
	SenderID  string      `json:"sender_id"`
	Kind      MessageKind `json:"kind"`
	Body      string      `json:"body"`
	Timestamp time.Time   `json:"timestamp"`
}

// Poll is a single question with a fixed option list
type Poll struct {
	ID        string            `json:"id"`
	Question  string            `json:"question"`
	Options   []string          `json:"options"`
	Responses map[string]string `json:"responses"` // userID -> answer
	CreatedBy string            `json:"created_by"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
}

// Clone returns a deep copy so snapshots never alias coordinator state
func (p Poll) Clone() Poll {
	out := p
	out.Options = append([]string(nil), p.Options...)
	out.Responses = make(map[string]string, len(p.Responses))
	for k, v := range p.Responses {
		out.Responses[k] = v
	}
	if p.EndTime != nil {
		end := *p.EndTime
		out.EndTime = &end
	}
	return out
}

// BreakoutRoom is a disjoint sub-group of session participants
type BreakoutRoom struct {
	ID        string   `json:"id"`
	MemberIDs []string `json:"member_ids"`
	Topic     string   `json:"topic,omitempty"`
}

// BreakoutAssignment is one requested room in create-breakout-rooms
type BreakoutAssignment struct {
	MemberIDs []string `json:"member_ids"`
	Topic     string   `json:"topic,omitempty"`
}

// RecordingState only tracks the flag, capture happens elsewhere
type RecordingState struct {
	IsRecording bool       `json:"is_recording"`
	RecordingID string     `json:"recording_id,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
}

// AnalyticsCategory groups analytics events
type AnalyticsCategory string

const (
	CategoryEngagement    AnalyticsCategory = "engagement"
	CategoryParticipation AnalyticsCategory = "participation"
	CategoryCodeActivity  AnalyticsCategory = "code_activity"
)

// AnalyticsEvent is append-only; retention is handled downstream
type AnalyticsEvent struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Category  AnalyticsCategory `json:"category"`
	UserID    string            `json:"user_id"`
	Action    string            `json:"action"`
	Timestamp time.Time         `json:"timestamp"`
}

// ExecutionRequest is forwarded verbatim to the execution sandbox
type ExecutionRequest struct {
	SessionID   string `json:"session_id"`
	RequestedBy string `json:"requested_by"`
	Code        string `json:"code"`
	Language    string `json:"language"`
	Version     int64  `json:"version"`
}

// ExecutionResult relays the sandbox response without imposing a schema
type ExecutionResult struct {
	RequestedBy string          `json:"requested_by"`
	Version     int64           `json:"version"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// SessionState is the full snapshot handed to a joiner so late and
// reconnecting clients catch up in one message
type SessionState struct {
	Session       Session         `json:"session"`
	Document      SharedDocument  `json:"document"`
	Participants  []Participant   `json:"participants"`
	ActivePoll    *Poll           `json:"active_poll,omitempty"`
	Polls         []Poll          `json:"polls"`
	BreakoutRooms []BreakoutRoom  `json:"breakout_rooms"`
	HandQueue     []string        `json:"hand_queue"`
	Recording     RecordingState  `json:"recording"`
}

// Identity is what the gateway learns from a verified token
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}
