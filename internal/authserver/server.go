// Package authserver is the local HTTP server that creates authentication
// sessions, receives the identity provider callback, and answers status polls.
package authserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/gitlab-mcp/internal/logging"
	"github.com/standardbeagle/gitlab-mcp/internal/session"
)

// Route paths.
const (
	PathStart    = "/auth/validate/start"
	PathStatus   = "/auth/validate/status"
	PathCallback = "/auth/callback"
	PathHealth   = "/health"
)

const shutdownTimeout = 5 * time.Second

// TokenService is the part of the token lifecycle the server drives.
type TokenService interface {
	ProcessCallback(token string) error
	StartAuthFlow(currentPath, sessionID string) (string, error)
}

// Options configures a Server.
type Options struct {
	// EditorScheme is the URL scheme of the editor to jump back into,
	// e.g. "cursor" or "vscode". Empty disables the redirect.
	EditorScheme string
	Logger       logging.Logger
}

// Server serves the authentication endpoints.
type Server struct {
	registry     *session.Registry
	tokens       TokenService
	logger       logging.Logger
	editorScheme string
	router       *mux.Router
}

// New creates a Server backed by registry and tokens.
func New(registry *session.Registry, tokens TokenService, opts Options) *Server {
	s := &Server{
		registry:     registry,
		tokens:       tokens,
		logger:       logging.Component(opts.Logger, "authserver"),
		editorScheme: opts.EditorScheme,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(PathStart, s.handleStart).Methods(http.MethodPost)
	r.HandleFunc(PathStatus, s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc(PathCallback, s.handleCallback).Methods(http.MethodGet)
	r.HandleFunc(PathHealth, s.handleHealth).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l and runs the registry sweep until ctx is cancelled,
// then shuts the HTTP server down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("auth server listening", "addr", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return s.registry.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
