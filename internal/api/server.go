// Package api is the HTTP surface of fedroute: the per-product service endpoints, the
// discovery recommendation endpoint, health and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/directory"
	"github.com/s100fed/fedroute/internal/logging"
	"github.com/s100fed/fedroute/internal/metrics"
	"github.com/s100fed/fedroute/internal/recommend"
	"github.com/s100fed/fedroute/internal/router"
	"github.com/s100fed/fedroute/internal/scoring"
)

const shutdownTimeout = 10 * time.Second

// Server serves the fedroute HTTP API.
type Server struct {
	router    router.Router
	store     directory.Store
	ranker    *recommend.Ranker
	history   recommend.HistoryProvider
	recorder  recommend.Recorder
	collector *metrics.Collector
	registry  *prometheus.Registry
	cfg       *config.Config
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithRouter sets the routing engine behind the service endpoints.
func WithRouter(r router.Router) Option {
	return func(s *Server) {
		s.router = r
	}
}

// WithStore sets the candidate store used for recommendations.
func WithStore(store directory.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithRanker sets the recommendation ranker.
func WithRanker(r *recommend.Ranker) Option {
	return func(s *Server) {
		s.ranker = r
	}
}

// WithHistory sets the access history provider used for preference scoring.
func WithHistory(h recommend.HistoryProvider) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithRecorder records successful service requests of identified users.
func WithRecorder(r recommend.Recorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithMetrics exposes reg on /metrics and counts recommendations on c.
func WithMetrics(c *metrics.Collector, reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.collector = c
		s.registry = reg
	}
}

// WithConfig sets the configuration. Defaults to config.New().
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// WithLogger sets the base request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithClock sets the clock used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a Server. A router is required.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		history: recommend.NoHistory,
		logger:  logging.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.router == nil {
		return nil, errors.New("api: router is required")
	}
	if s.cfg == nil {
		s.cfg = config.New()
	}
	if s.ranker == nil {
		s.ranker = recommend.NewRanker(
			recommend.WithScorer(scoring.New(s.cfg.Scoring)),
			recommend.WithWeights(s.cfg.Recommend.Weights),
			recommend.WithPreferenceSaturation(s.cfg.Recommend.PreferenceSaturation),
		)
	}
	if s.history == nil {
		s.history = recommend.NoHistory
	}
	return s, nil
}

// Handler returns the complete HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.traceMiddleware, s.loggingMiddleware, s.recoveryMiddleware)

	registerHealthRoutes(s, r)
	registerMetricsRoutes(s, r)
	registerRecommendRoutes(s, r)
	// Service routes last: their pattern matches any two path segments.
	registerServiceRoutes(s, r.PathPrefix("/api/v1").Subrouter())
	registerServiceRoutes(s, r)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}

// Run listens on the configured address until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("component", "api").
			Str("listen", ln.Addr().String()).
			Msg("server started")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info().Str("component", "api").Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
