package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/agentflow/api"
)

func (c *cli) newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Long: `Issue signs a token with server.auth.secret from the configuration. The
API only checks tokens when a secret is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive (got: %s)", ttl)
			}
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			if err := cfg.Server.Validate(); err != nil {
				return err
			}

			tokens, err := api.NewTokenService(cfg.Server.Auth)
			if err != nil {
				return fmt.Errorf("server.auth is not configured: %w", err)
			}
			signed, err := tokens.Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "agentflow-cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
