package coordinator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"liveclass/pkg/types"
)

// InteractionManager owns polls, the hand queue, breakout rooms and the
// recording flag of one session. Methods validate before they mutate.
type InteractionManager struct {
	polls        []*types.Poll
	activePollID string
	hands        []string
	rooms        []types.BreakoutRoom
	recording    types.RecordingState
	newID        func() string
}

// NewInteractionManager creates an empty manager
func NewInteractionManager() *InteractionManager {
	return &InteractionManager{newID: uuid.NewString}
}

// CreatePoll opens a new poll, failing if one is already active
func (m *InteractionManager) CreatePoll(createdBy, question string, options []string, now time.Time) (types.Poll, error) {
	if m.activePollID != "" {
		return types.Poll{}, ErrPollAlreadyActive
	}
	if err := types.ValidatePoll(question, options); err != nil {
		return types.Poll{}, err
	}

	poll := &types.Poll{
		ID:        m.newID(),
		Question:  question,
		Options:   append([]string(nil), options...),
		Responses: make(map[string]string),
		CreatedBy: createdBy,
		IsActive:  true,
		CreatedAt: now,
	}
	m.polls = append(m.polls, poll)
	m.activePollID = poll.ID
	return poll.Clone(), nil
}

// Respond records userID's answer on the active poll. A second answer
// from the same user overwrites the first.
func (m *InteractionManager) Respond(pollID, userID, answer string) (types.Poll, error) {
	poll := m.find(pollID)
	if poll == nil {
		return types.Poll{}, fmt.Errorf("%w: %s", ErrPollNotFound, pollID)
	}
	if !poll.IsActive || poll.ID != m.activePollID {
		return types.Poll{}, ErrPollNotActive
	}
	valid := false
	for _, opt := range poll.Options {
		if opt == answer {
			valid = true
			break
		}
	}
	if !valid {
		return types.Poll{}, ErrInvalidAnswer
	}

	poll.Responses[userID] = answer
	return poll.Clone(), nil
}

// EndPoll closes the active poll. An empty pollID means the active one.
func (m *InteractionManager) EndPoll(pollID string, now time.Time) (types.Poll, error) {
	if pollID == "" {
		pollID = m.activePollID
		if pollID == "" {
			return types.Poll{}, ErrPollNotActive
		}
	}
	poll := m.find(pollID)
	if poll == nil {
		return types.Poll{}, fmt.Errorf("%w: %s", ErrPollNotFound, pollID)
	}
	if !poll.IsActive {
		return types.Poll{}, ErrPollNotActive
	}

	m.closePoll(poll, now)
	return poll.Clone(), nil
}

func (m *InteractionManager) closePoll(poll *types.Poll, now time.Time) {
	end := now
	poll.IsActive = false
	poll.EndTime = &end
	m.activePollID = ""
}

func (m *InteractionManager) find(pollID string) *types.Poll {
	for _, p := range m.polls {
		if p.ID == pollID {
			return p
		}
	}
	return nil
}

// ActivePoll returns a copy of the active poll, if any
func (m *InteractionManager) ActivePoll() *types.Poll {
	if m.activePollID == "" {
		return nil
	}
	p := m.find(m.activePollID).Clone()
	return &p
}

// Polls returns copies of every poll in creation order
func (m *InteractionManager) Polls() []types.Poll {
	out := make([]types.Poll, 0, len(m.polls))
	for _, p := range m.polls {
		out = append(out, p.Clone())
	}
	return out
}

// RaiseHand appends userID to the queue and reports whether it was added.
// Raising twice keeps a single entry.
func (m *InteractionManager) RaiseHand(userID string) bool {
	for _, id := range m.hands {
		if id == userID {
			return false
		}
	}
	m.hands = append(m.hands, userID)
	return true
}

// LowerHand removes userID wherever it sits and reports whether it was there
func (m *InteractionManager) LowerHand(userID string) bool {
	for i, id := range m.hands {
		if id == userID {
			m.hands = append(m.hands[:i], m.hands[i+1:]...)
			return true
		}
	}
	return false
}

// HandQueue returns the queue in raise order
func (m *InteractionManager) HandQueue() []string {
	return append([]string{}, m.hands...)
}

// ValidateAssignment checks that every member is known and appears in
// at most one room
func ValidateAssignment(assignment []types.BreakoutAssignment, isMember func(string) bool) error {
	seen := make(map[string]int)
	for i, a := range assignment {
		for _, id := range a.MemberIDs {
			if !isMember(id) {
				return fmt.Errorf("%w: %s", ErrUnknownMember, id)
			}
			if prev, ok := seen[id]; ok {
				if prev == i {
					return fmt.Errorf("%w: %s listed twice in room %d", ErrOverlappingRooms, id, i+1)
				}
				return fmt.Errorf("%w: %s in rooms %d and %d", ErrOverlappingRooms, id, prev+1, i+1)
			}
			seen[id] = i
		}
	}
	return nil
}

// ReplaceRooms swaps the whole assignment. Callers validate first.
func (m *InteractionManager) ReplaceRooms(assignment []types.BreakoutAssignment) []types.BreakoutRoom {
	rooms := make([]types.BreakoutRoom, 0, len(assignment))
	for _, a := range assignment {
		rooms = append(rooms, types.BreakoutRoom{
			ID:        m.newID(),
			MemberIDs: append([]string(nil), a.MemberIDs...),
			Topic:     a.Topic,
		})
	}
	m.rooms = rooms
	return m.Rooms()
}

// Rooms returns copies of the current breakout rooms
func (m *InteractionManager) Rooms() []types.BreakoutRoom {
	out := make([]types.BreakoutRoom, 0, len(m.rooms))
	for _, r := range m.rooms {
		r.MemberIDs = append([]string(nil), r.MemberIDs...)
		out = append(out, r)
	}
	return out
}

// StartRecording mints a recording id. It reports false when already recording.
func (m *InteractionManager) StartRecording(now time.Time) (types.RecordingState, bool) {
	if m.recording.IsRecording {
		return m.Recording(), false
	}
	start := now
	m.recording = types.RecordingState{
		IsRecording: true,
		RecordingID: m.newID(),
		StartTime:   &start,
	}
	return m.Recording(), true
}

// StopRecording clears the flag and id. It reports false when not recording.
func (m *InteractionManager) StopRecording() (types.RecordingState, bool) {
	if !m.recording.IsRecording {
		return m.Recording(), false
	}
	m.recording = types.RecordingState{}
	return m.Recording(), true
}

func (m *InteractionManager) Recording() types.RecordingState {
	out := m.recording
	if out.StartTime != nil {
		t := *out.StartTime
		out.StartTime = &t
	}
	return out
}

// Shutdown ends the active poll, clears hands and rooms and stops recording.
// It returns the poll it closed, if any.
func (m *InteractionManager) Shutdown(now time.Time) (closed *types.Poll, stoppedRecording bool) {
	if m.activePollID != "" {
		poll := m.find(m.activePollID)
		m.closePoll(poll, now)
		c := poll.Clone()
		closed = &c
	}
	m.hands = nil
	m.rooms = nil
	_, stoppedRecording = m.StopRecording()
	return closed, stoppedRecording
}
