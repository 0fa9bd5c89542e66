package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"liveclass/pkg/types"
)

func TestValidateAssignment(t *testing.T) {
	members := map[string]bool{"a": true, "b": true, "c": true}
	isMember := func(id string) bool { return members[id] }

	tests := []struct {
		name       string
		assignment []types.BreakoutAssignment
		wantErr    error
	}{
		{name: "empty clears rooms"},
		{name: "disjoint", assignment: []types.BreakoutAssignment{{MemberIDs: []string{"a"}}, {MemberIDs: []string{"b", "c"}}}},
		{name: "overlap", assignment: []types.BreakoutAssignment{{MemberIDs: []string{"a", "b"}}, {MemberIDs: []string{"b"}}}, wantErr: ErrOverlappingRooms},
		{name: "duplicate in room", assignment: []types.BreakoutAssignment{{MemberIDs: []string{"a", "a"}}}, wantErr: ErrOverlappingRooms},
		{name: "unknown member", assignment: []types.BreakoutAssignment{{MemberIDs: []string{"z"}}}, wantErr: ErrUnknownMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAssignment(tt.assignment, isMember)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestInteractionManager_EndPollDefaultsToActive(t *testing.T) {
	m := NewInteractionManager()
	now := time.Now()

	_, err := m.EndPoll("", now)
	assert.ErrorIs(t, err, ErrPollNotActive)

	poll, err := m.CreatePoll("t", "q", []string{"a", "b"}, now)
	require.NoError(t, err)

	ended, err := m.EndPoll("", now)
	require.NoError(t, err)
	assert.Equal(t, poll.ID, ended.ID)

	_, err = m.EndPoll(poll.ID, now)
	assert.ErrorIs(t, err, types.ErrState)
}

func TestInteractionManager_ShutdownResetsEverything(t *testing.T) {
	m := NewInteractionManager()
	now := time.Now()

	_, err := m.CreatePoll("t", "q", []string{"a", "b"}, now)
	require.NoError(t, err)
	m.RaiseHand("s1")
	m.ReplaceRooms([]types.BreakoutAssignment{{MemberIDs: []string{"s1"}}})
	m.StartRecording(now)

	closed, stopped := m.Shutdown(now)
	require.NotNil(t, closed)
	assert.False(t, closed.IsActive)
	assert.True(t, stopped)
	assert.Nil(t, m.ActivePoll())
	assert.Empty(t, m.HandQueue())
	assert.Empty(t, m.Rooms())

	// nothing left to close the second time
	closed, stopped = m.Shutdown(now)
	assert.Nil(t, closed)
	assert.False(t, stopped)
}
