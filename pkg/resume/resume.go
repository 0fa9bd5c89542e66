// Package resume keeps the client-side record of the session a user last
// joined, so a restarted client can rejoin after checking the session is
// still live.
package resume

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"liveclass/pkg/types"
)

const (
	snapshotFileMode = 0o600
	snapshotDirMode  = 0o700
	tempFilePattern  = ".session-*.toml.tmp"
)

var (
	ErrNoSnapshot       = errors.New("no cached session")
	ErrSnapshotInvalid  = errors.New("cached session is no longer live")
	ErrIncompleteRecord = fmt.Errorf("%w: snapshot needs a session id and a role", types.ErrValidation)
)

// SessionSnapshot is what a client remembers about its current session
type SessionSnapshot struct {
	SessionID string     `toml:"session_id"`
	Role      types.Role `toml:"role"`
	JoinedAt  time.Time  `toml:"joined_at"`
}

func (s SessionSnapshot) validate() error {
	if s.SessionID == "" || !types.IsValidRole(s.Role) {
		return ErrIncompleteRecord
	}
	return nil
}

// Validator answers whether a session can still be resumed
type Validator interface {
	ValidateSession(ctx context.Context, sessionID string) (bool, error)
}

// ValidatorFunc adapts a function to Validator
type ValidatorFunc func(ctx context.Context, sessionID string) (bool, error)

func (f ValidatorFunc) ValidateSession(ctx context.Context, sessionID string) (bool, error) {
	return f(ctx, sessionID)
}

// Store is a single-snapshot TOML file
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by path. The file need not exist.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("snapshot path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot path: %w", err)
	}
	return &Store{path: filepath.Clean(absPath)}, nil
}

// DefaultPath is ~/.liveclass/session.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".liveclass", "session.toml"), nil
}

// Path returns the snapshot file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the cached snapshot. ErrNoSnapshot means nothing is cached.
func (s *Store) Load() (*SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var snapshot SessionSnapshot
	if err := toml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot file: %v", types.ErrValidation, err)
	}
	if err := snapshot.validate(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Save replaces the cached snapshot atomically
func (s *Store) Save(snapshot SessionSnapshot) error {
	if err := snapshot.validate(); err != nil {
		return err
	}
	if snapshot.JoinedAt.IsZero() {
		snapshot.JoinedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), snapshotDirMode); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	data, err := toml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp snapshot file: %w", err)
	}
	if err := tempFile.Chmod(snapshotFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp snapshot file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp snapshot file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	cleanup = false
	return nil
}

// Clear forgets the cached snapshot
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot file: %w", err)
	}
	return nil
}

// Resume loads the cached snapshot and checks it with v. A session that is
// gone or ended is discarded and ErrSnapshotInvalid returned. Validator
// errors leave the cache alone so an unreachable server does not wipe it.
func Resume(ctx context.Context, store *Store, v Validator) (*SessionSnapshot, error) {
	snapshot, err := store.Load()
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			// unusable record, drop it
			if clearErr := store.Clear(); clearErr != nil {
				return nil, clearErr
			}
			return nil, fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
		}
		return nil, err
	}

	valid, err := v.ValidateSession(ctx, snapshot.SessionID)
	if err != nil {
		return nil, fmt.Errorf("validate session %s: %w", snapshot.SessionID, err)
	}
	if !valid {
		if err := store.Clear(); err != nil {
			return nil, err
		}
		return nil, ErrSnapshotInvalid
	}
	return snapshot, nil
}
