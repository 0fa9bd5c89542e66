package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func TestSettings_Merge(t *testing.T) {
	base := DefaultSettings()
	vis := CodeVisibilityInstructors

	merged := base.Merge(SettingsPatch{
		AllowStudentCode: boolPtr(true),
		MaxParticipants:  intPtr(25),
		CodeVisibility:   &vis,
	})

	assert.True(t, merged.AllowStudentCode)
	assert.Equal(t, 25, merged.MaxParticipants)
	assert.Equal(t, CodeVisibilityInstructors, merged.CodeVisibility)
	// untouched fields keep their values
	assert.Equal(t, base.AllowChat, merged.AllowChat)
	assert.Equal(t, base.AllowHandRaise, merged.AllowHandRaise)
	// receiver is a value, original is unchanged
	assert.False(t, base.AllowStudentCode)
}

func TestSettingsPatch_Validate(t *testing.T) {
	bad := CodeVisibility("everyone")
	tests := []struct {
		name    string
		patch   SettingsPatch
		wantErr bool
	}{
		{name: "empty patch", patch: SettingsPatch{}},
		{name: "zero max participants means unlimited", patch: SettingsPatch{MaxParticipants: intPtr(0)}},
		{name: "negative max participants", patch: SettingsPatch{MaxParticipants: intPtr(-1)}, wantErr: true},
		{name: "unknown visibility", patch: SettingsPatch{CodeVisibility: &bad}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSessionConfig_Validate(t *testing.T) {
	require.NoError(t, SessionConfig{Name: "Intro to Go"}.Validate())

	err := SessionConfig{Name: strings.Repeat("a", 201)}.Validate()
	assert.ErrorIs(t, err, ErrValidation)

	neg := -3
	err = SessionConfig{Name: "x", Settings: &SettingsPatch{MaxParticipants: &neg}}.Validate()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIsValidUserID(t *testing.T) {
	tests := []struct {
		userID string
		valid  bool
	}{
		{"student_1", true},
		{"inst-42", true},
		{"", false},
		{"has space", false},
		{"bad!chars", false},
		{strings.Repeat("a", 50), true},
		{strings.Repeat("a", 51), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidUserID(tt.userID), "user id %q", tt.userID)
	}
}

func TestValidatePoll(t *testing.T) {
	require.NoError(t, ValidatePoll("Which loop?", []string{"for", "range"}))

	tests := []struct {
		name     string
		question string
		options  []string
	}{
		{"blank question", "   ", []string{"a", "b"}},
		{"single option", "q", []string{"a"}},
		{"duplicate options", "q", []string{"a", "a"}},
		{"empty option", "q", []string{"a", " "}},
		{"too many options", "q", strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidatePoll(tt.question, tt.options), ErrValidation)
		})
	}
}

func TestValidateMessageBody(t *testing.T) {
	require.NoError(t, ValidateMessageBody("hello"))
	assert.ErrorIs(t, ValidateMessageBody(""), ErrValidation)
	assert.ErrorIs(t, ValidateMessageBody(strings.Repeat("x", 16*1024+1)), ErrValidation)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{fmt.Errorf("%w: password mismatch", ErrValidation), CodeValidation},
		{fmt.Errorf("%w: instructors only", ErrAuthorization), CodeAuthorization},
		{fmt.Errorf("%w: roster full", ErrCapacity), CodeCapacity},
		{fmt.Errorf("%w: poll", ErrNotFound), CodeNotFound},
		{fmt.Errorf("wrapped twice: %w", fmt.Errorf("%w: ended", ErrState)), CodeState},
		{ErrConnection, CodeConnection},
		{errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, ErrorCode(tt.err))
	}
}

func TestPoll_CloneDoesNotAlias(t *testing.T) {
	p := Poll{
		ID:        "p1",
		Options:   []string{"a", "b"},
		Responses: map[string]string{"s1": "a"},
	}

	c := p.Clone()
	c.Responses["s2"] = "b"
	c.Options[0] = "z"

	assert.Len(t, p.Responses, 1)
	assert.Equal(t, "a", p.Options[0])
}
