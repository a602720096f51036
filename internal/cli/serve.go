package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/s100fed/fedroute/internal/api"
	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/logging"
	"github.com/s100fed/fedroute/internal/metrics"
)

// NewServeCmd creates the serve command that runs the HTTP routing service.
func NewServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the routing and discovery HTTP service",
		Long: `Starts the HTTP service. Service requests on /{product}/{service} and
/api/v1/{product}/{service} are redirected to the best federation node or rendered
locally; /discovery/recommend ranks services; /health and /metrics report status.

SIGHUP reloads the directory snapshot and clears the directory cache. The server
shuts down gracefully on SIGINT or SIGTERM.`,
		Example: `  # Serve with the default configuration
  fedroute serve

  # Override the listen address
  fedroute serve --listen 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			if listen != "" {
				cfg.Server.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides server.listen)")

	return cmd
}

// cacheSweepInterval is how often expired directory snapshots are purged.
const cacheSweepInterval = time.Minute

// runServe builds the runtime and serves until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config) error {
	collector := metrics.NewCollector()
	registry, err := metrics.NewRegistry(collector)
	if err != nil {
		return fmt.Errorf("creating metrics registry: %w", err)
	}

	rt, err := newRuntime(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			logger.Warn().Ctx(ctx).Err(closeErr).Msg("closing directory")
		}
	}()

	srv, err := api.New(
		api.WithRouter(rt.router),
		api.WithStore(rt.store),
		api.WithHistory(rt.history),
		api.WithRecorder(rt.recorder),
		api.WithMetrics(collector, registry),
		api.WithConfig(cfg),
		api.WithLogger(*logging.FromContext(ctx)),
	)
	if err != nil {
		return err
	}

	go rt.cached.RunJanitor(ctx, cacheSweepInterval)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go watchReload(ctx, rt, hup)

	logger.Info().Ctx(ctx).
		Str("listen", cfg.Server.Listen).
		Str("driver", cfg.Directory.Driver).
		Int("renderers", len(rt.renderers.Keys())).
		Float64("min_confidence", cfg.Routing.MinConfidence).
		Msg("starting server")
	return srv.Run(ctx)
}

// watchReload reloads the directory on every signal received on ch until ctx is done.
func watchReload(ctx context.Context, rt *runtime, ch <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			if err := rt.Reload(ctx); err != nil {
				logger.Error().Ctx(ctx).Err(err).Msg("directory reload failed")
				continue
			}
			logger.Info().Ctx(ctx).Msg("directory reloaded")
		}
	}
}
