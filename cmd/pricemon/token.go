package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	authsvc "github.com/FACorreiaa/da-price-monitor/internal/domain/auth/service"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the admin endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}

		tokens := authsvc.NewTokenManager([]byte(cfg.Auth.JWTSecret), ttl)
		token, expires, err := tokens.GenerateAccessToken(subject, cfg.Auth.AdminEmail, role)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		logger.Info("token issued",
			slog.String("subject", subject),
			slog.String("role", role),
			slog.Time("expires_at", expires),
		)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "admin", "token subject")
	tokenCmd.Flags().String("role", authsvc.RoleAdmin, "role claim")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime, defaults to JWT_TOKEN_TTL")
}
