package coordinator

import (
	"fmt"

	"liveclass/pkg/types"
)

// Coordinator errors, each wraps a taxonomy kind from pkg/types
var (
	ErrSessionEnded        = fmt.Errorf("%w: session has ended", types.ErrState)
	ErrNotParticipant      = fmt.Errorf("%w: not a participant in this session", types.ErrAuthorization)
	ErrInstructorOnly      = fmt.Errorf("%w: only instructors may do this", types.ErrAuthorization)
	ErrHostOnly            = fmt.Errorf("%w: only the host may broadcast", types.ErrAuthorization)
	ErrStudentsOnly        = fmt.Errorf("%w: only students raise hands", types.ErrAuthorization)
	ErrStudentCodeDisabled = fmt.Errorf("%w: student code editing is disabled", types.ErrAuthorization)
	ErrChatDisabled        = fmt.Errorf("%w: chat is disabled", types.ErrAuthorization)
	ErrHandRaiseDisabled   = fmt.Errorf("%w: hand raising is disabled", types.ErrAuthorization)
	ErrPasswordMismatch    = fmt.Errorf("%w: password mismatch", types.ErrValidation)
	ErrRosterFull          = fmt.Errorf("%w: session is full", types.ErrCapacity)
	ErrParticipantNotFound = fmt.Errorf("%w: participant not found", types.ErrNotFound)
	ErrPollAlreadyActive   = fmt.Errorf("%w: another poll is already active", types.ErrState)
	ErrPollNotActive       = fmt.Errorf("%w: poll is not active", types.ErrState)
	ErrPollNotFound        = fmt.Errorf("%w: poll not found", types.ErrNotFound)
	ErrInvalidAnswer       = fmt.Errorf("%w: answer is not one of the poll options", types.ErrValidation)
	ErrOverlappingRooms    = fmt.Errorf("%w: breakout room memberships must be disjoint", types.ErrValidation)
	ErrUnknownMember       = fmt.Errorf("%w: breakout member is not a participant", types.ErrValidation)
	ErrRecordingDisabled   = fmt.Errorf("%w: recording is disabled for this session", types.ErrState)
	ErrExecutorUnavailable = fmt.Errorf("%w: code execution is not configured", types.ErrState)
	ErrDocumentTooLarge    = fmt.Errorf("%w: document exceeds size limit", types.ErrValidation)
	ErrInvalidRole         = fmt.Errorf("%w: %v", types.ErrValidation, types.ErrInvalidRole)
	ErrInvalidUserID       = fmt.Errorf("%w: %v", types.ErrValidation, types.ErrInvalidUserID)
	ErrNotIdle             = fmt.Errorf("%w: session is not idle", types.ErrState)
	ErrUnknownCommand      = fmt.Errorf("%w: unknown command", types.ErrValidation)
)
