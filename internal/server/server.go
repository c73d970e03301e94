// Package server exposes the query engine over HTTP. One endpoint per
// request method, JSON in, JSON out.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/declsql/internal/access"
	"github.com/leapstack-labs/declsql/internal/engine"
)

// Server is the HTTP boundary around an Engine. The engine pointer is
// swappable so config hot reload replaces the pipeline without dropping
// in-flight requests.
type Server struct {
	addr   string
	eng    atomic.Pointer[engine.Engine]
	tokens *access.TokenVerifier
	logger *slog.Logger
}

// Config holds the HTTP boundary configuration.
type Config struct {
	// Addr is the listen address.
	Addr string
	// Engine handles requests.
	Engine *engine.Engine
	// Tokens verifies bearer tokens; nil means all callers are anonymous.
	Tokens *access.TokenVerifier
	// Logger is the structured logger (discard if nil).
	Logger *slog.Logger
}

// New creates a server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		addr:   cfg.Addr,
		tokens: cfg.Tokens,
		logger: logger,
	}
	s.eng.Store(cfg.Engine)
	return s
}

// SwapEngine replaces the engine, closing the old one. Used by config hot
// reload.
func (s *Server) SwapEngine(eng *engine.Engine) {
	old := s.eng.Swap(eng)
	if old != nil && old != eng {
		if err := old.Close(); err != nil {
			s.logger.Warn("closing replaced engine", "error", err)
		}
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		requestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/health", s.handleHealth)

	// One endpoint per request method: the URL names the default method
	// and the body may still override it with @method.
	for _, verb := range []string{"get", "post", "put", "delete", "head"} {
		r.Post("/"+verb, s.handleQuery(verb))
	}
	// Generic endpoint, read by default; the body picks the method.
	r.Post("/query", s.handleQuery("get"))

	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info("listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	if closeErr := s.eng.Load().Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
