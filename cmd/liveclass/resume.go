package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"liveclass/pkg/resume"
	"liveclass/pkg/types"
)

type resumeOptions struct {
	file string
}

func (o *resumeOptions) store() (*resume.Store, error) {
	path := o.file
	if path == "" {
		var err error
		if path, err = resume.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return resume.NewStore(path)
}

// newResumeCmd manages the client-side session cache. The bare command
// checks the cached session against a server and prints it if it is live.
func newResumeCmd() *cobra.Command {
	opts := &resumeOptions{}
	var (
		server  string
		token   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Check whether the cached session can be rejoined",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			validator := resume.NewHTTPValidator(server, token, timeout)

			snapshot, err := resume.Resume(cmd.Context(), store, validator)
			switch {
			case errors.Is(err, resume.ErrNoSnapshot):
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no cached session")
				return err
			case errors.Is(err, resume.ErrSnapshotInvalid):
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "cached session has ended, cache cleared")
				return err
			case err != nil:
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "resumable session=%s role=%s joined=%s\n",
				snapshot.SessionID, snapshot.Role, snapshot.JoinedAt.Format(time.RFC3339))
			return err
		},
	}
	cmd.PersistentFlags().StringVar(&opts.file, "file", "", "snapshot file (default ~/.liveclass/session.toml)")
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "validation request timeout")

	cmd.AddCommand(newResumeSaveCmd(opts), newResumeClearCmd(opts))
	return cmd
}

func newResumeSaveCmd(opts *resumeOptions) *cobra.Command {
	var (
		sessionID string
		role      string
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Record the session this client joined",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			if err := store.Save(resume.SessionSnapshot{
				SessionID: sessionID,
				Role:      types.Role(role),
				JoinedAt:  time.Now().UTC(),
			}); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved session=%s to %s\n", sessionID, store.Path())
			return err
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&role, "role", string(types.RoleStudent), "role in the session")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newResumeClearCmd(opts *resumeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the cached session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			return store.Clear()
		},
	}
}
