package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/directory"
	"github.com/s100fed/fedroute/internal/directory/cache"
	"github.com/s100fed/fedroute/internal/logging"
	"github.com/s100fed/fedroute/internal/metrics"
	"github.com/s100fed/fedroute/internal/ogc"
	"github.com/s100fed/fedroute/internal/recommend"
	"github.com/s100fed/fedroute/internal/render"
	"github.com/s100fed/fedroute/internal/router"
	"github.com/s100fed/fedroute/internal/scoring"
)

// runtime holds the components shared by serve, route and recommend.
type runtime struct {
	cfg       *config.Config
	store     directory.Store
	cached    *directory.CachedStore
	snapshot  *directory.MemoryStore
	history   recommend.HistoryProvider
	recorder  recommend.Recorder
	renderers *render.Registry
	router    *router.DefaultRouter
	db        *sql.DB
}

// newRuntime builds the directory, access history, renderers and routing engine for
// cfg. A non-nil collector receives routing decisions and cache lookups.
func newRuntime(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt := &runtime{cfg: cfg}
	backing, err := rt.openDirectory(ctx)
	if err != nil {
		return nil, err
	}

	lookupCache, err := cache.NewMemoryStore(cfg.Cache.Enabled, cfg.Cache.TTLSeconds)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("creating directory cache: %w", err)
	}
	var cacheOpts []directory.CachedOption
	if collector != nil {
		cacheOpts = append(cacheOpts, directory.WithLookupObserver(collector.ObserveCacheLookup))
	}
	rt.cached = directory.NewCachedStore(backing, lookupCache, cacheOpts...)
	rt.store = rt.cached

	rt.renderers, err = render.BuildRegistry(cfg.RendererSpecs(), cfg.RenderTimeout())
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("building renderers: %w", err)
	}

	routerOpts := []router.Option{
		router.WithStore(rt.store),
		router.WithRenderers(rt.renderers),
		router.WithConfig(cfg.Routing),
		router.WithValidator(ogc.NewValidator(cfg.Catalogs(), cfg.Limits.MaxWidth, cfg.Limits.MaxHeight)),
		router.WithScorer(scoring.New(cfg.Scoring)),
	}
	if collector != nil {
		routerOpts = append(routerOpts, router.WithObserver(func(d router.Decision) {
			mode := metrics.ModeNone
			if d.Mode != "" {
				mode = string(d.Mode)
			}
			collector.ObserveDecision(mode, string(d.State), d.Elapsed)
		}))
	}
	rt.router, err = router.NewRouter(routerOpts...)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("creating router: %w", err)
	}
	return rt, nil
}

// openDirectory opens the configured candidate store and the matching access history.
func (rt *runtime) openDirectory(ctx context.Context) (directory.Store, error) {
	log := logging.FromContext(ctx)
	dir := rt.cfg.Directory

	switch dir.Driver {
	case config.DriverPostgres:
		db, err := directory.OpenPostgres(ctx, dir.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.db = db
		if dir.MigrateOnStart {
			version, err := directory.Migrate(db)
			if err != nil {
				_ = rt.Close()
				return nil, err
			}
			log.Info().Ctx(ctx).Str("component", "cli").Uint("schema_version", version).Msg("database migrated")
		}
		store, err := directory.NewPostgresStore(db)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		history, err := recommend.NewPostgresHistory(db)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.history, rt.recorder = history, history
		return store, nil

	default:
		history := recommend.NewMemoryHistory(nil)
		if dir.History != "" {
			loaded, err := recommend.LoadMemoryHistory(dir.History)
			if err != nil {
				return nil, err
			}
			history = loaded
		}
		rt.history, rt.recorder = history, history

		if dir.Snapshot == "" {
			log.Warn().Ctx(ctx).Str("component", "cli").Msg("no directory snapshot configured; every request renders locally")
			return directory.NewMemoryStore(nil), nil
		}
		store, warnings, err := directory.NewMemoryStoreFromFile(ctx, dir.Snapshot)
		if err != nil {
			return nil, err
		}
		logSnapshotLoaded(ctx, dir.Snapshot, store.Len(), warnings)
		rt.snapshot = store
		return store, nil
	}
}

func logSnapshotLoaded(ctx context.Context, path string, candidates int, warnings []string) {
	log := logging.FromContext(ctx)
	for _, w := range warnings {
		log.Warn().Ctx(ctx).Str("component", "cli").Str("snapshot", path).Msg(w)
	}
	log.Info().Ctx(ctx).
		Str("component", "cli").
		Str("snapshot", path).
		Int("candidates", candidates).
		Msg("directory snapshot loaded")
}

// Reload re-reads the directory snapshot file, when one is configured, and drops every
// cached lookup so the next request sees the current directory. A snapshot that fails
// to load leaves the previous one in place.
func (rt *runtime) Reload(ctx context.Context) error {
	if rt.snapshot != nil {
		snap, err := directory.LoadSnapshot(rt.cfg.Directory.Snapshot)
		if err != nil {
			return err
		}
		cands, warnings := snap.Candidates(*logging.FromContext(ctx))
		rt.snapshot.Replace(cands)
		logSnapshotLoaded(ctx, rt.cfg.Directory.Snapshot, len(cands), warnings)
	}
	if err := rt.cached.Invalidate(); err != nil {
		return fmt.Errorf("clearing directory cache: %w", err)
	}
	return nil
}

// Close releases the database connection, if one was opened.
func (rt *runtime) Close() error {
	if rt.db == nil {
		return nil
	}
	err := rt.db.Close()
	rt.db = nil
	return err
}
