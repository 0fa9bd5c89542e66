package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"liveclass/internal/auth"
	"liveclass/pkg/types"
)

// newTokenCmd issues development tokens signed with the server's secret
func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		userID string
		name   string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			if !types.IsValidUserID(userID) || !types.IsValidRole(types.Role(role)) {
				return auth.ErrInvalidClaims
			}
			if name == "" {
				name = userID
			}
			token, err := verifier.Issue(types.Identity{
				UserID:      userID,
				DisplayName: name,
				Role:        types.Role(role),
			}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the user id)")
	cmd.Flags().StringVar(&role, "role", string(types.RoleStudent), "instructor or student")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
