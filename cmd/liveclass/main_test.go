package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"liveclass/internal/auth"
	"liveclass/pkg/types"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestServe_RequiresSecret(t *testing.T) {
	t.Setenv("LIVECLASS_AUTH_JWT_SECRET", "")
	_, err := executeCLI(t, "serve", "--db", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret")
}

func TestToken_IssuesVerifiableToken(t *testing.T) {
	t.Setenv("LIVECLASS_AUTH_JWT_SECRET", "cli-secret")

	out, err := executeCLI(t, "token", "--user", "teacher-1", "--role", "instructor")
	require.NoError(t, err)

	v, err := auth.NewVerifier("cli-secret", "")
	require.NoError(t, err)
	identity, err := v.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", identity.UserID)
	assert.Equal(t, types.RoleInstructor, identity.Role)
}

func TestToken_RejectsBadRole(t *testing.T) {
	t.Setenv("LIVECLASS_AUTH_JWT_SECRET", "cli-secret")

	_, err := executeCLI(t, "token", "--user", "u1", "--role", "admin")
	assert.ErrorIs(t, err, auth.ErrInvalidClaims)
}

func TestResume_Flow(t *testing.T) {
	var live atomic.Bool
	live.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.ValidatePayload{SessionID: "s-1", Valid: live.Load()})
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "session.toml")

	out, err := executeCLI(t, "resume", "--file", file, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "no cached session")

	out, err = executeCLI(t, "resume", "save", "--file", file, "--session", "s-1", "--role", "student")
	require.NoError(t, err)
	assert.Contains(t, out, "saved session=s-1")

	out, err = executeCLI(t, "resume", "--file", file, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "resumable session=s-1 role=student")

	live.Store(false)
	out, err = executeCLI(t, "resume", "--file", file, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "cache cleared")

	out, err = executeCLI(t, "resume", "--file", file, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "no cached session")
}

func TestResume_ClearAndSaveValidation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "session.toml")

	_, err := executeCLI(t, "resume", "save", "--file", file, "--session", "s-1", "--role", "guest")
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = executeCLI(t, "resume", "clear", "--file", file)
	assert.NoError(t, err)
}
