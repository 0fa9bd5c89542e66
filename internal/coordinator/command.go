package coordinator

import (
	"time"

	"liveclass/pkg/types"
)

// Command is the tagged union accepted by Coordinator.Apply
type Command interface {
	command() string
}

// Join adds or replaces the caller's roster slot
type Join struct {
	UserID      string
	DisplayName string
	Role        types.Role
	Password    string
}

// Leave removes the caller; the host leaving ends the session
type Leave struct {
	UserID string
}

// UpdateCode replaces the whole shared document. A RequestID the session
// already stored for the same user is acknowledged without a second write.
type UpdateCode struct {
	UserID    string
	RequestID string
	Code      string
	Language  string
}

// RunCode forwards the current document to the execution sandbox
type RunCode struct {
	UserID string
}

// SendMessage posts a chat message
type SendMessage struct {
	UserID string
	Body   string
}

// Broadcast posts a host announcement
type Broadcast struct {
	UserID string
	Body   string
}

// RaiseHand queues the caller for attention
type RaiseHand struct {
	UserID string
}

// LowerHand removes a hand from the queue. An instructor may name
// another participant in TargetID to acknowledge their hand.
type LowerHand struct {
	UserID   string
	TargetID string
}

// CreatePoll opens a poll; only one may be active at a time
type CreatePoll struct {
	UserID   string
	Question string
	Options  []string
}

// RespondPoll records or overwrites the caller's answer
type RespondPoll struct {
	UserID string
	PollID string
	Answer string
}

// EndPoll closes the active poll
type EndPoll struct {
	UserID string
	PollID string
}

// CreateBreakoutRooms replaces the whole breakout assignment
type CreateBreakoutRooms struct {
	UserID     string
	Assignment []types.BreakoutAssignment
}

// UpdateSettings merges a settings patch
type UpdateSettings struct {
	UserID string
	Patch  types.SettingsPatch
}

// ToggleRecording flips the recording flag
type ToggleRecording struct {
	UserID string
}

// SetRecording turns recording on or off, a no-op when already there
type SetRecording struct {
	UserID string
	On     bool
}

// End terminates the session; it cannot be undone
type End struct {
	UserID string
	Reason string

	system bool
}

// Terminate builds an End issued by the registry itself (idle reaping,
// shutdown) that bypasses the instructor check
func Terminate(reason string) End {
	return End{Reason: reason, system: true}
}

// ReapIfIdle ends the session with Reason when nobody has been present
// for at least IdleFor. Issued by the registry reaper.
type ReapIfIdle struct {
	IdleFor time.Duration
	Reason  string
}

// executionCompleted carries a sandbox result back into the session
type executionCompleted struct {
	result types.ExecutionResult
}

func (Join) command() string                { return "join" }
func (Leave) command() string               { return "leave" }
func (UpdateCode) command() string          { return "update_code" }
func (RunCode) command() string             { return "run_code" }
func (SendMessage) command() string         { return "send_message" }
func (Broadcast) command() string           { return "broadcast" }
func (RaiseHand) command() string           { return "raise_hand" }
func (LowerHand) command() string           { return "lower_hand" }
func (CreatePoll) command() string          { return "create_poll" }
func (RespondPoll) command() string         { return "respond_poll" }
func (EndPoll) command() string             { return "end_poll" }
func (CreateBreakoutRooms) command() string { return "create_breakout_rooms" }
func (UpdateSettings) command() string      { return "update_settings" }
func (ToggleRecording) command() string     { return "toggle_recording" }
func (SetRecording) command() string        { return "set_recording" }
func (End) command() string                 { return "end" }
func (ReapIfIdle) command() string          { return "reap_if_idle" }
func (executionCompleted) command() string  { return "execution_completed" }
