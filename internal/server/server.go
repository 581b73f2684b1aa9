// Package server hosts diagrams over HTTP.
//
// Every session owns one live [widget.Widget]. Clients create a session by
// posting a dataset, then drive it the way the embedded diagram would:
// posting click and hover events, switching modes, replacing the
// selection. Committed changes are written back to the session store, and
// selections are broadcast to other hosts when the store is a
// [session.Notifier].
//
// Routes:
//
//	POST   /sessions                      create from a JSON or YAML dataset
//	GET    /sessions/{id}                 props
//	DELETE /sessions/{id}
//	PUT    /sessions/{id}/data            replace the dataset
//	GET    /sessions/{id}/diagram.{fmt}   svg, json, png, pdf, dot, nodelink
//	GET    /sessions/{id}/view            HTML page with the clickable diagram
//	POST   /sessions/{id}/events          user event; SVG or JSON reply
//	PUT    /sessions/{id}/mode            {"metric_mode": bool}
//	PUT    /sessions/{id}/metric-config   partial metric weights
//	GET    /sessions/{id}/selection
//	PUT    /sessions/{id}/selection       {"flow": "SRC->TGT"} or {}
//	GET    /healthz
//	GET    /metrics
package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/stripesankey/pkg/buildinfo"
	"github.com/matzehuels/stripesankey/pkg/httputil"
	"github.com/matzehuels/stripesankey/pkg/observability"
	"github.com/matzehuels/stripesankey/pkg/pipeline"
	"github.com/matzehuels/stripesankey/pkg/session"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// Options configures a [Server].
type Options struct {
	// Store persists sessions. Defaults to a memory store.
	Store session.Store

	// Runner renders and caches PNG, PDF and node-link artifacts.
	// Defaults to an uncached runner.
	Runner *pipeline.Runner

	// Defaults seed the props of new sessions.
	Defaults widget.Props

	// SessionTTL is the idle lifetime of a session.
	SessionTTL time.Duration

	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	// Logger receives request and session logs. Nil discards them.
	Logger *log.Logger
}

// Server is the HTTP host.
type Server struct {
	store    session.Store
	runner   *pipeline.Runner
	defaults widget.Props
	ttl      time.Duration
	metrics  http.Handler
	logger   *log.Logger

	// origin identifies this host in selection broadcasts.
	origin string

	mu   sync.Mutex
	live map[string]*liveSession

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Store == nil {
		opts.Store = session.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Runner == nil {
		opts.Runner = pipeline.NewRunner(nil, nil, opts.Logger)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		store:    opts.Store,
		runner:   opts.Runner,
		defaults: opts.Defaults,
		ttl:      opts.SessionTTL,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		origin:   uuid.NewString(),
		live:     make(map[string]*liveSession),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Put("/data", s.handleSetData)
			r.Get("/diagram.{format}", s.handleDiagram)
			r.Get("/view", s.handleView)
			r.Post("/events", s.handleEvent)
			r.Put("/mode", s.handleMode)
			r.Put("/metric-config", s.handleMetricConfig)
			r.Get("/selection", s.handleGetSelection)
			r.Put("/selection", s.handleSetSelection)
		})
	})
	return r
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	go s.sweep(ctx)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// sweep removes expired sessions from the store every few minutes.
func (s *Server) sweep(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.store.Cleanup(ctx); err != nil {
				s.logger.Warn("session cleanup failed", "err", err)
			}
			s.evictExpired()
		}
	}
}

// Close stops all subscriptions and closes the store.
func (s *Server) Close() error {
	s.cancel()
	s.mu.Lock()
	for id, ls := range s.live {
		ls.stop()
		delete(s.live, id)
	}
	s.mu.Unlock()
	return s.store.Close()
}

// instrument reports every request to the server hooks and logs it.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.Server().OnRequest(r.Context(), r.Method, route, status, time.Since(start))
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}
