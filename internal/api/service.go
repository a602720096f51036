package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/s100fed/fedroute/internal/apierr"
	"github.com/s100fed/fedroute/internal/logging"
	"github.com/s100fed/fedroute/internal/router"
)

// Telemetry headers of the service endpoints.
const (
	HeaderQueryMode         = "X-Query-Mode"
	HeaderQueryTime         = "X-Query-Time"
	HeaderCacheHit          = "X-Cache-Hit"
	HeaderServiceNode       = "X-Service-Node"
	HeaderServiceConfidence = "X-Service-Confidence"
	HeaderRenderMode        = "X-Render-Mode"
	HeaderProduct           = "X-Product"
	HeaderServiceType       = "X-Service-Type"

	// HeaderUserID identifies the caller for access history recording.
	HeaderUserID = "X-User-ID"
)

func registerServiceRoutes(s *Server, r *mux.Router) {
	r.HandleFunc("/{product}/{serviceType}", s.handleService).Methods(http.MethodGet, http.MethodHead)
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	product, service := vars["product"], vars["serviceType"]

	d := s.router.Route(ctx, product, service, r.URL.Query())
	if d.Request.Product != "" {
		product, service = string(d.Request.Product), string(d.Request.Service)
	}

	h := w.Header()
	h.Set(HeaderProduct, product)
	h.Set(HeaderServiceType, service)
	h.Set(HeaderQueryTime, strconv.FormatInt(d.Elapsed.Milliseconds(), 10))
	if d.Mode != "" {
		h.Set(HeaderQueryMode, string(d.Mode))
		h.Set(HeaderCacheHit, strconv.FormatBool(d.CacheHit))
	}

	switch d.State {
	case router.StateRedirecting:
		h.Set(HeaderServiceNode, d.NodeID)
		h.Set(HeaderServiceConfidence, strconv.FormatFloat(d.Confidence, 'f', 2, 64))
		http.Redirect(w, r, d.RedirectURL, http.StatusTemporaryRedirect)

	case router.StateDirectRendering:
		if d.Mode == router.ModeDirect {
			h.Set(HeaderRenderMode, string(router.ModeDirect))
		}
		for k, vs := range d.Response.Headers {
			for _, v := range vs {
				h.Add(k, v)
			}
		}
		w.WriteHeader(d.Response.Status)
		if r.Method != http.MethodHead {
			_, _ = w.Write(d.Response.Body)
		}

	default:
		err := d.Err
		if err == nil {
			err = apierr.New(apierr.InternalError, "")
		}
		if err.Kind == apierr.InternalError && err.Err != nil {
			logging.FromContext(ctx).Error().
				Ctx(ctx).
				Err(err.Err).
				Str("component", "api").
				Msg("routing failed")
		}
		apierr.Write(w, err)
		return
	}

	s.recordAccess(r, d)
}

// recordAccess appends a successful request to the caller's access history.
func (s *Server) recordAccess(r *http.Request, d router.Decision) {
	userID := r.Header.Get(HeaderUserID)
	if s.recorder == nil || userID == "" || d.Failed() {
		return
	}
	ctx := r.Context()
	err := s.recorder.Record(ctx, userID, string(d.Request.Product), string(d.Request.Service), s.now().UTC().Truncate(time.Second))
	if err != nil {
		logging.FromContext(ctx).Warn().
			Ctx(ctx).
			Err(err).
			Str("component", "api").
			Str("user_id", userID).
			Msg("failed to record service access")
	}
}
