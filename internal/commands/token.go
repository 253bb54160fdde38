package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finca/internal/auth"
)

const minSecretLength = 32

func newTokenCommand() *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for a family member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if len(cfg.JWTSecret) < minSecretLength {
				return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
			}
			if ttl <= 0 {
				ttl = cfg.SessionTTL
			}

			token, err := auth.NewJWTManager(cfg.JWTSecret, ttl).Generate(userID, email)
			if err != nil {
				return fmt.Errorf("minting token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to SESSION_TTL)")

	return cmd
}
