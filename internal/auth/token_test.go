package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"liveclass/pkg/types"
)

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("", "")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndVerify(t *testing.T) {
	v, err := NewVerifier("test-secret", "liveclass")
	require.NoError(t, err)

	identity := types.Identity{UserID: "teacher-1", DisplayName: "Ms. Frizzle", Role: types.RoleInstructor}
	token, err := v.Issue(identity, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, err := NewVerifier("test-secret", "")
	require.NoError(t, err)

	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return issued }
	token, err := v.Issue(types.Identity{UserID: "student-1", Role: types.RoleStudent}, time.Minute)
	require.NoError(t, err)

	v.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, errors.Is(err, types.ErrAuthorization))
}

func TestVerifyRejectsWrongSecretAndIssuer(t *testing.T) {
	issuer, err := NewVerifier("secret-a", "other")
	require.NoError(t, err)
	token, err := issuer.Issue(types.Identity{UserID: "student-1", Role: types.RoleStudent}, 0)
	require.NoError(t, err)

	wrongSecret, err := NewVerifier("secret-b", "other")
	require.NoError(t, err)
	_, err = wrongSecret.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewVerifier("secret-a", "liveclass")
	require.NoError(t, err)
	_, err = wrongIssuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherSigningMethods(t *testing.T) {
	v, err := NewVerifier("test-secret", "")
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "student-1", Role: types.RoleStudent})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsBadClaims(t *testing.T) {
	v, err := NewVerifier("test-secret", "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		identity types.Identity
	}{
		{"empty user", types.Identity{Role: types.RoleStudent}},
		{"bad user id", types.Identity{UserID: "has space", Role: types.RoleStudent}},
		{"unknown role", types.Identity{UserID: "u1", Role: "janitor"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := v.Issue(tt.identity, time.Hour)
			require.NoError(t, err)
			_, err = v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidClaims)
		})
	}
}
