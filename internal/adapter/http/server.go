package adapthttp

import (
	"net/http"

	"fitlog/internal/app"

	"github.com/charmbracelet/log"
)

// Options configures a Server.
type Options struct {
	// WebDir holds the single-page app. Empty serves the API only.
	WebDir string
	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
	// ForwardAuthHeader names a trusted reverse-proxy username header.
	// Empty disables forward auth.
	ForwardAuthHeader string
	// OIDC enables single sign-on when non-nil.
	OIDC *OIDCConfig
	// Logger receives request logs. Defaults to the package logger.
	Logger *log.Logger
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	authSvc *app.AuthService
	entries *app.EntryService
	export  *app.ExportService
	charts  *app.ChartsService
	avatars *app.AvatarService
	opts    Options
	logger  *log.Logger
}

// New creates a Server wired to the given application services.
func New(authSvc *app.AuthService, entries *app.EntryService, export *app.ExportService,
	charts *app.ChartsService, avatars *app.AvatarService, opts Options,
) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		authSvc: authSvc,
		entries: entries,
		export:  export,
		charts:  charts,
		avatars: avatars,
		opts:    opts,
		logger:  logger,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	api.HandleFunc("GET /config", s.handleConfig)

	api.HandleFunc("POST /register", s.handleRegister)
	api.HandleFunc("POST /login", s.handleLogin)
	api.HandleFunc("POST /logout", s.handleLogout)
	api.HandleFunc("GET /sso/login", s.handleSSOLogin)
	api.HandleFunc("GET /sso/callback", s.handleSSOCallback)
	api.HandleFunc("GET /avatars/{ref}", s.handleAvatar)

	api.Handle("GET /me", s.protect(s.handleMe))
	api.Handle("PUT /me", s.protect(s.handleUpdateMe))
	api.Handle("POST /me/avatar", s.protect(s.handleUploadAvatar))

	api.Handle("GET /entries", s.protect(s.handleListEntries))
	api.Handle("POST /entries", s.protect(s.handleCreateEntry))
	api.Handle("GET /entries/{id}", s.protect(s.handleGetEntry))
	api.Handle("PUT /entries/{id}", s.protect(s.handleUpdateEntry))
	api.Handle("DELETE /entries/{id}", s.protect(s.handleDeleteEntry))

	api.Handle("GET /dashboard", s.protect(s.handleDashboard))
	api.Handle("GET /export/csv", s.protect(s.handleExportCSV))
	api.Handle("GET /chart.png", s.protect(s.handleChartPNG))
	api.Handle("GET /chart-data", s.protect(s.handleChartData))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	if s.opts.WebDir != "" {
		root.Handle("/", spaFromDisk(s.opts.WebDir))
	}

	return s.loggingMiddleware(withNoCache(root))
}

func (s *Server) protect(h http.HandlerFunc) http.Handler {
	return s.authMiddleware(h)
}
