package router

import (
	"time"

	"github.com/s100fed/fedroute/internal/apierr"
	"github.com/s100fed/fedroute/internal/ogc"
	"github.com/s100fed/fedroute/internal/render"
)

// State is a stage of the routing state machine.
type State string

// Routing states. A decision starts in VALIDATING and ends in REDIRECTING,
// DIRECT_RENDERING or FAILED.
const (
	StateValidating      State = "VALIDATING"
	StateResolving       State = "RESOLVING"
	StateRedirecting     State = "REDIRECTING"
	StateDirectRendering State = "DIRECT_RENDERING"
	StateFailed          State = "FAILED"
)

// Mode is the query-mode telemetry tag.
type Mode string

// Query modes.
const (
	ModeCached Mode = "cached"
	ModeDirect Mode = "direct"
)

// Decision is the outcome of routing one request.
type Decision struct {
	// State is the terminal state.
	State State
	// Trail lists every state visited, in order.
	Trail []State

	// Request is the validated request; zero when validation failed.
	Request ogc.Request

	// Mode is set for bbox operations: cached for redirects, direct for local rendering.
	Mode     Mode
	Elapsed  time.Duration
	CacheHit bool

	// NodeID and Confidence describe the selected candidate of a redirect.
	NodeID      string
	Confidence  float64
	RedirectURL string

	// Candidates is the number of candidates considered after node exclusion.
	Candidates int

	// Response is the rendered payload in DIRECT_RENDERING.
	Response *render.Response

	// Err is set in FAILED.
	Err *apierr.Error
}

// Failed reports whether the decision ended in FAILED.
func (d *Decision) Failed() bool {
	return d.State == StateFailed
}

// Redirected reports whether the decision ended in REDIRECTING.
func (d *Decision) Redirected() bool {
	return d.State == StateRedirecting
}

func (d *Decision) enter(s State) {
	d.State = s
	d.Trail = append(d.Trail, s)
}

func (d *Decision) fail(err *apierr.Error) {
	d.Err = err
	d.Response = nil
	d.RedirectURL = ""
	d.enter(StateFailed)
}
