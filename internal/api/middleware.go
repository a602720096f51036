package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/s100fed/fedroute/internal/apierr"
	"github.com/s100fed/fedroute/internal/logging"
)

// HeaderTraceID carries the request trace id in both directions.
const HeaderTraceID = "X-Trace-ID"

// traceMiddleware assigns every request a trace id (the client's X-Trace-ID when
// present) and a request-scoped logger.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(HeaderTraceID)
		if traceID == "" {
			traceID = logging.GenerateTraceID()
		}
		ctx := logging.ContextWithTraceID(r.Context(), traceID)
		ctx = s.logger.WithContext(ctx)

		w.Header().Set(HeaderTraceID, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		ev := logging.FromContext(r.Context()).Info()
		if status >= http.StatusInternalServerError {
			ev = logging.FromContext(r.Context()).Warn()
		}
		ev.Ctx(r.Context()).
			Str("component", "api").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", rec.bytes).
			Dur("duration_ms", time.Since(start)).
			Msg("request handled")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.FromContext(r.Context()).Error().
					Ctx(r.Context()).
					Str("component", "api").
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("recovered from panic in handler")
				apierr.Write(w, apierr.Wrap(apierr.InternalError, fmt.Errorf("panic: %v", rec), ""))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
