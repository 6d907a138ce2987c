package cli

import (
	"fmt"

	"fitlog/internal/app"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage login sessions",
	}
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		Long:  `Delete expired sessions from the session store. Redis sessions expire on their own.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer b.Close() //nolint: errcheck

			if err := app.NewAuthService(b.store, b.sessions).PruneSessions(ctx); err != nil {
				return fmt.Errorf("failed to prune sessions: %w", err)
			}
			log.Info("expired sessions pruned", "store", cfg.Session.Store)
			return nil
		},
	})
	return sessionsCmd
}
