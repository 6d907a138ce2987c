package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "fitlog/internal/adapter/http"
	"fitlog/internal/app"
	"fitlog/internal/config"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the fitlog server",
		Long:  `Start the HTTP server that serves the JSON API and the single-page app.`,
		Example: `fitlog serve --config config.yml
fitlog serve -c /path/to/config.yml --log-level debug
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// buildServer wires the services for cfg on top of b.
func buildServer(ctx context.Context, cfg *config.Config, b *backend) (*adapthttp.Server, error) {
	avatarStore, err := openAvatarStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open avatar store: %w", err)
	}

	authSvc := app.NewAuthService(b.store, b.sessions,
		app.WithSessionTTL(cfg.Session.TTL),
		app.WithRegistration(cfg.Auth.RegistrationEnabled),
	)
	entries := app.NewEntryService(b.store)

	opts := adapthttp.Options{
		WebDir:       cfg.WebDir,
		CookieSecure: cfg.Session.CookieSecure,
		Logger:       log.Default(),
	}
	if cfg.Auth.ForwardAuth.Enabled {
		opts.ForwardAuthHeader = cfg.Auth.ForwardAuth.Header
	}
	if o := cfg.Auth.OIDC; o.Enabled {
		opts.OIDC, err = adapthttp.NewOIDC(ctx, o.Issuer, o.ClientID, o.ClientSecret, o.RedirectURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set up OIDC: %w", err)
		}
		log.Info("OIDC login enabled", "issuer", o.Issuer)
	}

	return adapthttp.New(
		authSvc,
		entries,
		app.NewExportService(entries),
		app.NewChartsService(entries),
		app.NewAvatarService(avatarStore, b.store, cfg.Avatars.Size, cfg.Gravatar),
		opts,
	), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Error("failed to close storage", "error", err)
		}
	}()

	srv, err := buildServer(ctx, cfg, b)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server", "listen", cfg.Listen, "storage", cfg.Storage.Driver, "sessions", cfg.Session.Store)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
