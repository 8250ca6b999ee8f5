// ABOUTME: HTTP server exposing health checks and the turn ledger
// ABOUTME: Listens on plain TCP or on a Tailscale tsnet node and shuts down gracefully

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/coven-helpdesk/internal/config"
	"github.com/2389/coven-helpdesk/internal/conversation"
	"github.com/2389/coven-helpdesk/internal/store"
)

// Readiness reports whether the chat transports are connected.
type Readiness interface {
	Ready() bool
	Status() map[string]bool
}

// StatsSource exposes in-memory conversation counters.
type StatsSource interface {
	Stats() conversation.Stats
}

// Deps are the components the HTTP handlers read from.
type Deps struct {
	Ledger      store.Store
	Readiness   Readiness
	Stats       StatsSource
	Broadcaster *conversation.Broadcaster // optional, enables /api/turns/stream
}

// Server serves the health and ledger endpoints.
type Server struct {
	server    config.ServerConfig
	tailscale config.TailscaleConfig
	deps      Deps
	logger    *slog.Logger

	httpServer  *http.Server
	tsnetServer *tsnet.Server

	// requests derive from baseCtx so Shutdown can end open streams
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a server. It does not listen until Run is called.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Ledger == nil {
		return nil, errors.New("server requires a ledger")
	}
	if deps.Readiness == nil {
		return nil, errors.New("server requires a readiness source")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		server:    cfg.Server,
		tailscale: cfg.Tailscale,
		deps:      deps,
		logger:    logger.With("component", "server"),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.HandleFunc("GET /api/turns", s.handleListTurns)
	mux.HandleFunc("GET /api/turns/{id}", s.handleGetTurn)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	if s.deps.Broadcaster != nil {
		mux.HandleFunc("GET /api/turns/stream", s.handleStream)
	}
	return mux
}

// Run listens and serves until ctx is canceled, then shuts down.
// Returns nil on graceful shutdown, or the error that stopped the server.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serveErr = <-errCh:
		if serveErr != nil {
			s.logger.Error("server error", "error", serveErr)
		}
	}

	// The caller's context is already done; shutdown gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serveErr != nil {
		return serveErr
	}
	return shutdownErr
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	if s.tailscale.Enabled {
		if s.server.HTTPAddr != "" && s.server.HTTPAddr != config.DefaultHTTPAddr {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.server.HTTPAddr)
		}
		return s.listenTailscale(ctx)
	}

	ln, err := net.Listen("tcp", s.server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Shutdown stops the HTTP server and the tailscale node if one was started.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.cancelBase()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if s.tsnetServer != nil {
		if err := s.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
