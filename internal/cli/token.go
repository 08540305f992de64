package cli

import (
	"errors"
	"fmt"
	"time"

	"quiz-room-service/internal/auth"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewTokenCmd mints an access token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var userID, username string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.AccessTokenSecret == "" {
				return errors.New("auth.access_token_secret is required")
			}
			if userID == "" {
				userID = uuid.NewString()
			}
			issuer := auth.NewIssuer(cfg.Auth.AccessTokenSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
			token, err := issuer.Issue(domain.Identity{ID: userID, Username: username})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id claim (random when empty)")
	cmd.Flags().StringVar(&username, "username", "", "username claim")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
