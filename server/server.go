// Package server wires the subsystems together: store, tenant
// resolution, business hours, dispatcher, middleware chain, and the
// HTTP listener.
//
// This package exists to break the import cycle: the root nexdesk
// package defines the error taxonomy and Config (imported by every
// subsystem) and so cannot import those packages back. The server
// package sits above all subsystem packages and below main.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/api"
	"github.com/nexdesk/nexdesk/dispatcher"
	"github.com/nexdesk/nexdesk/hours"
	mw "github.com/nexdesk/nexdesk/middleware"
	"github.com/nexdesk/nexdesk/queue"
	"github.com/nexdesk/nexdesk/store"
	"github.com/nexdesk/nexdesk/tenant"
)

// Server is the assembled dispatch service.
type Server struct {
	cfg    nexdesk.Config
	store  store.Store
	logger *slog.Logger

	queueConfigs []queue.Config

	hoursSvc   *hours.Service
	dispatch   *dispatcher.Dispatcher
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the server and every subsystem it
// assembles.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithQueueConfigs sets queue manager limits applied to pull attempts.
func WithQueueConfigs(configs ...queue.Config) Option {
	return func(s *Server) { s.queueConfigs = configs }
}

// New assembles a Server from a config and a store backend.
func New(cfg nexdesk.Config, st store.Store, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hoursSvc = hours.NewService(st, hours.WithLogger(s.logger))

	dispatchOpts := []dispatcher.Option{dispatcher.WithLogger(s.logger)}
	if len(s.queueConfigs) > 0 {
		dispatchOpts = append(dispatchOpts, dispatcher.WithQueueManager(queue.NewManager(s.queueConfigs...)))
	}
	s.dispatch = dispatcher.New(st, s.hoursSvc, dispatchOpts...)

	resolver := tenant.NewResolver(st,
		tenant.WithHeader(cfg.TenantHeader),
		tenant.WithParam(cfg.TenantParam),
		tenant.WithBaseDomain(cfg.BaseDomain),
		tenant.WithLogger(s.logger),
	)

	routes := api.New(st, s.dispatch, s.hoursSvc, api.WithLogger(s.logger)).Routes()

	// Tenant resolution sits ahead of the observability middlewares:
	// Logging, Tracing, and Metrics read the binding from the request
	// context, so they must see the post-resolution request.
	handler := mw.Chain(
		mw.Recover(s.logger),
		tenant.Middleware(resolver, tenant.WithMiddlewareLogger(s.logger)),
		mw.Logging(s.logger),
		mw.Tracing(),
		mw.Metrics(),
		mw.Timeout(cfg.RequestTimeout),
	)(routes)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Dispatcher exposes the assembled dispatcher, e.g. for an in-process
// worker poller.
func (s *Server) Dispatcher() *dispatcher.Dispatcher { return s.dispatch }

// Hours exposes the assembled business-hours service.
func (s *Server) Hours() *hours.Service { return s.hoursSvc }

// Handler exposes the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start runs the HTTP listener until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", s.cfg.ListenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen on %s: %w", s.cfg.ListenAddr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
