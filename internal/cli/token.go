package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/estimate-export-api/internal/service"
	"github.com/noah-isme/estimate-export-api/pkg/config"
)

// TokenCmd issues an access token signed with the configured JWT secret.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an access token for a user",
		Long:  "Issue a bearer token for local testing. The token is signed with JWT_SECRET.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			email, _ := cmd.Flags().GetString("email")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = cfg.JWT.Expiration
			}
			return issueToken(cmd, cfg.JWT, args[0], email, ttl)
		},
	}

	cmd.Flags().String("email", "", "Email claim")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to JWT_EXPIRATION)")

	return cmd
}

func issueToken(cmd *cobra.Command, jwtCfg config.JWTConfig, userID, email string, ttl time.Duration) error {
	auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{
		AccessTokenSecret: jwtCfg.Secret,
		AccessTokenExpiry: ttl,
		Issuer:            jwtCfg.Issuer,
	})
	token, expiresAt, err := auth.IssueToken(userID, email)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
