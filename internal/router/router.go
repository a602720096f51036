// Package router resolves validated service requests to federation nodes. A request
// that needs a rendered area is redirected to the most confident candidate node, or
// rendered locally when no candidate qualifies; every other operation is served by the
// local renderer.
package router

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/s100fed/fedroute/internal/apierr"
	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/directory"
	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/logging"
	"github.com/s100fed/fedroute/internal/ogc"
	"github.com/s100fed/fedroute/internal/render"
	"github.com/s100fed/fedroute/internal/scoring"
)

// ParamUseCache disables the directory lookup when set to "false".
const ParamUseCache = "useCache"

// Router routes service requests.
//
// Thread Safety: All methods are safe for concurrent use.
type Router interface {
	// Route validates the request and decides how it is answered.
	//
	// Flow:
	// 1. VALIDATING: product, service and OGC parameters; failures end in FAILED
	// 2. RESOLVING: only for operations rendering an area (GetMap, GetCoverage)
	// 3. REDIRECTING when a candidate meets the minimum confidence
	// 4. DIRECT_RENDERING otherwise, or for every other operation
	//
	// Route never panics and never returns a nil Err in FAILED.
	Route(ctx context.Context, product, service string, params url.Values) Decision
}

// DefaultRouter implements Router over a candidate store and a renderer registry.
type DefaultRouter struct {
	store     directory.Store
	renderers *render.Registry
	config    config.RoutingConfig
	validator *ogc.Validator
	scorer    *scoring.Scorer
	selector  *Selector
	exclude   *NodeFilter
	now       func() time.Time
	observers []func(Decision)
}

// Option configures a Router.
type Option func(*DefaultRouter)

// WithStore sets the candidate store. Without one every bbox request is rendered locally.
func WithStore(store directory.Store) Option {
	return func(r *DefaultRouter) {
		r.store = store
	}
}

// WithRenderers sets the local renderer registry.
func WithRenderers(reg *render.Registry) Option {
	return func(r *DefaultRouter) {
		r.renderers = reg
	}
}

// WithConfig sets the routing configuration.
// If not provided, config.DefaultRoutingConfig is used.
func WithConfig(cfg config.RoutingConfig) Option {
	return func(r *DefaultRouter) {
		r.config = cfg
	}
}

// WithValidator sets the request validator.
// If not provided, the full catalog and default dimension limits are used.
func WithValidator(v *ogc.Validator) Option {
	return func(r *DefaultRouter) {
		r.validator = v
	}
}

// WithScorer sets the confidence scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(r *DefaultRouter) {
		r.scorer = s
	}
}

// WithClock sets the clock used for elapsed time.
func WithClock(now func() time.Time) Option {
	return func(r *DefaultRouter) {
		r.now = now
	}
}

// WithObserver registers a function called with every finished decision.
func WithObserver(fn func(Decision)) Option {
	return func(r *DefaultRouter) {
		r.observers = append(r.observers, fn)
	}
}

// NewRouter creates a new Router with the given options.
//
// Example:
//
//	router, err := NewRouter(
//	    WithStore(store),
//	    WithRenderers(registry),
//	    WithConfig(cfg.Routing),
//	)
func NewRouter(opts ...Option) (*DefaultRouter, error) {
	r := &DefaultRouter{
		config: config.DefaultRoutingConfig(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.validator == nil {
		r.validator = ogc.NewValidator(catalog.Default(), ogc.DefaultMaxDimension, ogc.DefaultMaxDimension)
	}
	if r.scorer == nil {
		r.scorer = scoring.Default()
	}
	if r.renderers == nil {
		r.renderers = render.NewRegistry()
	}
	r.selector = NewSelector(r.scorer, r.config.AssumeGlobal())

	exclude, err := NewNodeFilter(r.config.ExcludeNodes)
	if err != nil {
		return nil, err
	}
	r.exclude = exclude

	return r, nil
}

// Route implements Router.
func (r *DefaultRouter) Route(ctx context.Context, product, service string, params url.Values) (d Decision) {
	log := logging.FromContext(ctx)
	start := r.now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Ctx(ctx).
				Str("component", "router").
				Str("operation", "route").
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic while routing")
			d.fail(apierr.Wrap(apierr.InternalError, fmt.Errorf("panic: %v", rec), ""))
		}
		d.Elapsed = r.now().Sub(start)
		r.notify(ctx, d)
	}()

	d.enter(StateValidating)
	req, err := r.validator.Validate(product, service, params)
	if err != nil {
		e := apierr.From(err)
		log.Debug().
			Ctx(ctx).
			Str("component", "router").
			Str("product", product).
			Str("service", service).
			Str("error_code", string(e.Kind)).
			Msg("request rejected by validation")
		d.fail(e)
		return d
	}
	d.Request = req

	if !req.Operation.RequiresBBox() {
		r.renderLocal(ctx, &d)
		return d
	}

	d.enter(StateResolving)
	if useDirectory(params) {
		if sel, ok := r.resolve(ctx, &d); ok {
			redirect, mergeErr := render.MergeQuery(sel.Candidate.Capability.Endpoint, req.Params)
			if mergeErr == nil {
				d.Mode = ModeCached
				d.CacheHit = true
				d.NodeID = sel.Candidate.Node.ID
				d.Confidence = sel.Confidence
				d.RedirectURL = redirect
				d.enter(StateRedirecting)
				log.Debug().
					Ctx(ctx).
					Str("component", "router").
					Str("operation", "route").
					Str("node_id", d.NodeID).
					Float64("confidence", d.Confidence).
					Str("redirect_url", redirect).
					Msg("redirecting to federation node")
				return d
			}
			log.Warn().
				Ctx(ctx).
				Err(mergeErr).
				Str("component", "router").
				Str("capability_id", sel.Candidate.ID()).
				Msg("selected candidate has an unusable endpoint, rendering locally")
		}
	}

	r.renderDirect(ctx, &d, start)
	return d
}

// resolve queries the store and selects the best candidate. Store failures are logged
// and reported as no selection.
func (r *DefaultRouter) resolve(ctx context.Context, d *Decision) (Selection, bool) {
	if r.store == nil {
		return Selection{}, false
	}
	log := logging.FromContext(ctx)
	req := d.Request

	lookupCtx, cancel := context.WithTimeout(ctx, r.config.Timeout())
	defer cancel()

	cands, err := r.store.FindCandidates(lookupCtx, directory.Filter{
		ProductTypes:    []string{string(req.Product)},
		ServiceTypes:    []string{string(req.Service)},
		HealthThreshold: r.config.Threshold(),
	})
	if err != nil {
		log.Warn().
			Ctx(ctx).
			Err(err).
			Str("component", "router").
			Str("operation", "resolve").
			Str("product", string(req.Product)).
			Str("service", string(req.Service)).
			Msg("directory lookup failed, falling back to direct rendering")
		return Selection{}, false
	}

	cands, excluded := r.exclude.Apply(cands)
	d.Candidates = len(cands)
	if len(excluded) > 0 {
		log.Debug().
			Ctx(ctx).
			Str("component", "router").
			Strs("excluded_nodes", excluded).
			Msg("excluded candidates by node policy")
	}

	sel, ok := r.selector.Select(cands, SelectOptions{BBox: req.BBox, MinConfidence: r.config.MinConfidence})

	log.Debug().
		Ctx(ctx).
		Str("component", "router").
		Str("operation", "resolve").
		Int("candidate_count", len(cands)).
		Bool("selected", ok).
		Msg("candidate selection complete")
	return sel, ok
}

// renderDirect renders a bbox request locally after resolution found nothing.
func (r *DefaultRouter) renderDirect(ctx context.Context, d *Decision, start time.Time) {
	log := logging.FromContext(ctx)
	req := d.Request
	d.Mode = ModeDirect
	d.CacheHit = false
	d.enter(StateDirectRendering)

	unavailable := func(cause error) {
		e := apierr.Wrap(apierr.ServiceUnavailable, cause,
			fmt.Sprintf("No %s %s service available for the specified area", req.Product, req.Service)).
			WithDetails("queryMode", string(ModeDirect)).
			WithDetails("queryTime", r.now().Sub(start).Milliseconds()).
			WithDetails("cacheHit", false)
		log.Warn().
			Ctx(ctx).
			Err(cause).
			Str("component", "router").
			Str("operation", "direct_render").
			Str("product", string(req.Product)).
			Str("service", string(req.Service)).
			Msg("no service available for request")
		d.fail(e)
	}

	renderer, err := r.renderers.Lookup(req.Product, req.Service)
	if err != nil {
		unavailable(err)
		return
	}

	renderCtx, cancel := context.WithTimeout(ctx, r.config.Timeout())
	defer cancel()

	resp, err := renderer.Render(renderCtx, req)
	if err != nil {
		unavailable(err)
		return
	}
	if resp == nil || !resp.OK() {
		status := 0
		if resp != nil {
			status = resp.Status
		}
		unavailable(fmt.Errorf("local renderer returned status %d", status))
		return
	}
	d.Response = resp
}

// renderLocal serves operations that never leave this node.
func (r *DefaultRouter) renderLocal(ctx context.Context, d *Decision) {
	log := logging.FromContext(ctx)
	req := d.Request
	d.enter(StateDirectRendering)

	renderer, err := r.renderers.Lookup(req.Product, req.Service)
	if err != nil {
		d.fail(apierr.Wrap(apierr.ServiceNotImplemented, err,
			fmt.Sprintf("%s is not implemented for %s %s", req.Operation, req.Product, req.Service)))
		return
	}

	renderCtx, cancel := context.WithTimeout(ctx, r.config.Timeout())
	defer cancel()

	resp, err := renderer.Render(renderCtx, req)
	if err != nil {
		kind := apierr.ServiceUnavailable
		if req.Operation == catalog.OpGetFeatureInfo {
			kind = apierr.FeatureInfoError
		}
		log.Warn().
			Ctx(ctx).
			Err(err).
			Str("component", "router").
			Str("operation", "local_render").
			Str("request", string(req.Operation)).
			Msg("local renderer failed")
		d.fail(apierr.Wrap(kind, err, ""))
		return
	}
	if resp == nil {
		d.fail(apierr.New(apierr.ServiceUnavailable, ""))
		return
	}
	d.Response = resp
}

func (r *DefaultRouter) notify(ctx context.Context, d Decision) {
	for _, fn := range r.observers {
		fn(d)
	}
	ev := logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "router").
		Str("state", string(d.State)).
		Str("mode", string(d.Mode)).
		Dur("elapsed", d.Elapsed)
	if d.Err != nil {
		ev = ev.Str("error_code", string(d.Err.Kind))
	}
	ev.Msg("routing decision complete")
}

// Candidates validates the request and returns every ranked candidate with the
// exclusion policy applied, for diagnostics. It does not render or redirect.
func (r *DefaultRouter) Candidates(ctx context.Context, product, service string, params url.Values) (ogc.Request, []Selection, error) {
	req, err := r.validator.Validate(product, service, params)
	if err != nil {
		return ogc.Request{}, nil, err
	}
	if r.store == nil {
		return req, nil, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.config.Timeout())
	defer cancel()

	cands, err := r.store.FindCandidates(lookupCtx, directory.Filter{
		ProductTypes:    []string{string(req.Product)},
		ServiceTypes:    []string{string(req.Service)},
		HealthThreshold: r.config.Threshold(),
	})
	if err != nil {
		return req, nil, apierr.Wrap(apierr.ServiceUnavailable, err, "")
	}
	cands, _ = r.exclude.Apply(cands)
	return req, r.selector.Rank(cands, SelectOptions{BBox: req.BBox, MinConfidence: r.config.MinConfidence}), nil
}

// Threshold returns the configured health threshold.
func (r *DefaultRouter) Threshold() federation.HealthStatus {
	return r.config.Threshold()
}

// useDirectory reports whether the request allows a directory lookup.
func useDirectory(params url.Values) bool {
	return !strings.EqualFold(ogc.Lookup(params, ParamUseCache), "false")
}
