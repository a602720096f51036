package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/s100fed/fedroute/internal/apierr"
	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/directory"
	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/geo"
	"github.com/s100fed/fedroute/internal/logging"
	"github.com/s100fed/fedroute/internal/recommend"
)

// RecommendQuery is a parsed recommendation request.
type RecommendQuery struct {
	UserID       string    `json:"userId,omitempty"`
	Context      string    `json:"context,omitempty"`
	ProductTypes []string  `json:"productTypes,omitempty"`
	ServiceTypes []string  `json:"serviceTypes,omitempty"`
	BBox         *geo.BBox `json:"bbox,omitempty"`
	Limit        int       `json:"-"`
}

// Recommendation is one ranked service in the response.
type Recommendation struct {
	federation.ScoredCandidate
	Capability federation.Capability `json:"capability"`
	Node       federation.Node       `json:"node"`
	Dataset    *federation.Dataset   `json:"dataset,omitempty"`
}

// RecommendMetadata describes how a recommendation response was produced.
type RecommendMetadata struct {
	TotalCandidates         int            `json:"totalCandidates"`
	ReturnedRecommendations int            `json:"returnedRecommendations"`
	Context                 RecommendQuery `json:"context"`
	GeneratedAt             time.Time      `json:"generatedAt"`
}

// RecommendResponse is the body of GET /discovery/recommend.
type RecommendResponse struct {
	Recommendations []Recommendation  `json:"recommendations"`
	Metadata        RecommendMetadata `json:"metadata"`
}

func registerRecommendRoutes(s *Server, r *mux.Router) {
	r.HandleFunc("/discovery/recommend", s.handleRecommend).Methods(http.MethodGet)
	r.HandleFunc("/api/discovery/recommend", s.handleRecommend).Methods(http.MethodGet)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	q, err := ParseRecommendQuery(r.URL.Query(), s.cfg.Recommend.DefaultLimit, s.cfg.Recommend.MaxLimit)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	if q.UserID == "" {
		q.UserID = r.Header.Get(HeaderUserID)
	}

	resp, err := s.Recommend(ctx, q)
	if err != nil {
		apierr.Write(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn().Ctx(ctx).Err(err).Str("component", "api").Msg("failed to write recommendations")
	}
}

// Recommend ranks the directory's candidates for q. The candidate lookup and the
// user's access history are fetched concurrently; a failing history source degrades
// to ranking without preference, a failing directory is SERVICE_UNAVAILABLE.
func (s *Server) Recommend(ctx context.Context, q RecommendQuery) (RecommendResponse, error) {
	if s.store == nil {
		return RecommendResponse{}, apierr.New(apierr.ServiceUnavailable, "Service directory is not configured")
	}
	log := logging.FromContext(ctx)

	var (
		cands   []federation.Candidate
		history []recommend.AccessRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var findErr error
		cands, findErr = s.store.FindCandidates(gctx, directory.Filter{
			ProductTypes:    q.ProductTypes,
			ServiceTypes:    q.ServiceTypes,
			HealthThreshold: s.cfg.Routing.Threshold(),
			Limit:           s.cfg.Recommend.MaxCandidates,
		})
		return findErr
	})
	if q.UserID != "" {
		g.Go(func() error {
			var histErr error
			history, histErr = s.history.History(gctx, q.UserID)
			if histErr != nil {
				log.Warn().
					Ctx(ctx).
					Err(histErr).
					Str("component", "api").
					Str("user_id", q.UserID).
					Msg("access history unavailable, ranking without preference")
				history = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RecommendResponse{}, apierr.Wrap(apierr.ServiceUnavailable, err, "")
	}

	scored := s.ranker.Rank(ctx, cands, recommend.Context{
		History: history,
		Text:    q.Context,
		BBox:    q.BBox,
	}, q.Limit)

	resp := RecommendResponse{
		Recommendations: make([]Recommendation, 0, len(scored)),
		Metadata: RecommendMetadata{
			TotalCandidates:         len(cands),
			ReturnedRecommendations: len(scored),
			Context:                 q,
			GeneratedAt:             s.now().UTC(),
		},
	}
	for _, sc := range scored {
		resp.Recommendations = append(resp.Recommendations, Recommendation{
			ScoredCandidate: sc,
			Capability:      sc.Candidate.Capability,
			Node:            sc.Candidate.Node,
			Dataset:         sc.Candidate.Dataset,
		})
	}
	if s.collector != nil {
		s.collector.AddRecommendations(len(scored))
	}
	return resp, nil
}

// ParseRecommendQuery parses the recommendation query parameters. Unknown product or
// service types, a malformed bbox and a non-positive or non-numeric limit are
// INVALID_PARAMETER errors; limits above maxLimit are capped.
func ParseRecommendQuery(params url.Values, defaultLimit, maxLimit int) (RecommendQuery, error) {
	q := RecommendQuery{
		UserID:       strings.TrimSpace(params.Get("userId")),
		Context:      strings.TrimSpace(params.Get("context")),
		ProductTypes: splitList(params.Get("productTypes")),
		ServiceTypes: splitList(params.Get("serviceTypes")),
		Limit:        defaultLimit,
	}

	for i, p := range q.ProductTypes {
		product, ok := catalog.ParseProduct(p)
		if !ok {
			return RecommendQuery{}, apierr.New(apierr.InvalidParameter, "Unknown product type in productTypes").
				WithDetails("productTypes", p).
				WithDetails("valid_products", catalog.ValidProductNames())
		}
		q.ProductTypes[i] = string(product)
	}
	for i, st := range q.ServiceTypes {
		service, ok := catalog.ParseService(st)
		if !ok {
			return RecommendQuery{}, apierr.New(apierr.InvalidParameter, "Unknown service type in serviceTypes").
				WithDetails("serviceTypes", st).
				WithDetails("valid_service_types", catalog.ValidServiceNames())
		}
		q.ServiceTypes[i] = string(service)
	}

	if raw := strings.TrimSpace(params.Get("bbox")); raw != "" {
		b, err := geo.ParseBBox(raw)
		if err != nil {
			return RecommendQuery{}, apierr.Wrap(apierr.InvalidParameter, err, "Invalid bbox. Expected: minX,minY,maxX,maxY").
				WithDetails("bbox", raw)
		}
		q.BBox = &b
	}

	if raw := strings.TrimSpace(params.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return RecommendQuery{}, apierr.New(apierr.InvalidParameter, "limit must be a positive integer").
				WithDetails("limit", raw)
		}
		q.Limit = n
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
