package cli

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/s100fed/fedroute/internal/apierr"
	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/directory"
	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/geo"
	"github.com/s100fed/fedroute/internal/ogc"
	"github.com/s100fed/fedroute/internal/router"
)

// routeArgs is the number of positional arguments of the route command.
const routeArgs = 2

// RouteFlags holds the flags of the route command.
type RouteFlags struct {
	Params  []string
	Explain bool
	Fresh   bool
	Output  string
}

// routeResult is the JSON form of a routing decision.
type routeResult struct {
	State       router.State       `json:"state"`
	Trail       []router.State     `json:"trail"`
	Mode        router.Mode        `json:"mode,omitempty"`
	CacheHit    bool               `json:"cacheHit"`
	NodeID      string             `json:"nodeId,omitempty"`
	Confidence  float64            `json:"confidence,omitempty"`
	RedirectURL string             `json:"redirectUrl,omitempty"`
	Candidates  int                `json:"candidates"`
	ElapsedMs   int64              `json:"elapsedMs"`
	Status      int                `json:"status,omitempty"`
	ContentType string             `json:"contentType,omitempty"`
	Bytes       int                `json:"bytes,omitempty"`
	Error       *apierr.BodyError  `json:"error,omitempty"`
	Ranked      []router.Selection `json:"ranked,omitempty"`
}

// NewRouteCmd creates the route command that runs the routing engine offline.
func NewRouteCmd() *cobra.Command {
	var flags RouteFlags

	cmd := &cobra.Command{
		Use:   "route <product> <service>",
		Short: "Route a single service request against the configured directory",
		Long: `Runs the routing engine for one request without starting the server and prints
the decision: the redirect target with its confidence, the local rendering result, or
the error. With --explain every candidate considered is listed with its score.`,
		Example: `  # Where would a GetMap for Shanghai go?
  fedroute route S101 WMS --param REQUEST=GetMap --param BBOX=121,31,122,32 \
    --param WIDTH=256 --param HEIGHT=256

  # Same request, skipping the directory cache, with the full candidate table
  fedroute route S101 WMS --param REQUEST=GetMap --param BBOX=121,31,122,32 \
    --param WIDTH=256 --param HEIGHT=256 --fresh --explain`,
		Args: cobra.ExactArgs(routeArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.Params, "param", "p", nil, "request parameter as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&flags.Explain, "explain", false, "list every candidate with its confidence breakdown")
	cmd.Flags().BoolVar(&flags.Fresh, "fresh", false, "bypass the directory cache")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", outputTable, "output format: table or json")

	return cmd
}

func runRoute(cmd *cobra.Command, product, service string, flags RouteFlags) error {
	if err := validateOutputFormat(flags.Output); err != nil {
		return err
	}
	params, err := parseParams(flags.Params)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if flags.Fresh {
		ctx = directory.WithoutCache(ctx)
	}

	rt, err := newRuntime(ctx, config.GetGlobalConfig(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	d := rt.router.Route(ctx, product, service, params)

	var (
		req    ogc.Request
		ranked []router.Selection
	)
	if flags.Explain {
		req, ranked, err = rt.router.Candidates(ctx, product, service, params)
		if err != nil && !d.Failed() {
			logger.Warn().Ctx(ctx).Err(err).Msg("candidate listing failed")
		}
	}

	out := cmd.OutOrStdout()
	if flags.Output == outputJSON {
		if err = writeJSON(out, newRouteResult(d, ranked)); err != nil {
			return err
		}
	} else {
		renderDecision(out, d)
		if flags.Explain {
			if err = renderCandidates(out, req.BBox, ranked); err != nil {
				return err
			}
		}
	}

	if d.Failed() {
		return &RouteFailedError{Kind: d.Err.Kind}
	}
	return nil
}

// ExitCodeRouteFailed is the process exit code when a routed request ends in FAILED.
const ExitCodeRouteFailed = 2

// RouteFailedError reports a routing decision that ended in FAILED. The decision has
// already been printed; main maps this error to ExitCodeRouteFailed.
type RouteFailedError struct {
	Kind apierr.Kind
}

func (e *RouteFailedError) Error() string {
	return fmt.Sprintf("routing failed: %s", e.Kind)
}

// parseParams converts KEY=VALUE pairs into query parameters. Repeated keys keep every value.
func parseParams(pairs []string) (url.Values, error) {
	params := make(url.Values, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected KEY=VALUE", pair)
		}
		params.Add(key, value)
	}
	return params, nil
}

func newRouteResult(d router.Decision, ranked []router.Selection) routeResult {
	res := routeResult{
		State:       d.State,
		Trail:       d.Trail,
		Mode:        d.Mode,
		CacheHit:    d.CacheHit,
		NodeID:      d.NodeID,
		Confidence:  d.Confidence,
		RedirectURL: d.RedirectURL,
		Candidates:  d.Candidates,
		ElapsedMs:   d.Elapsed.Milliseconds(),
		Ranked:      ranked,
	}
	if d.Response != nil {
		res.Status = d.Response.Status
		res.ContentType = d.Response.Headers.Get("Content-Type")
		res.Bytes = len(d.Response.Body)
	}
	if d.Err != nil {
		res.Error = &apierr.BodyError{Code: d.Err.Kind, Message: d.Err.Message, Details: d.Err.Details}
	}
	return res
}

func renderDecision(w io.Writer, d router.Decision) {
	st := newStyler(w)

	trail := make([]string, len(d.Trail))
	for i, s := range d.Trail {
		trail[i] = string(s)
	}

	state := string(d.State)
	switch {
	case d.Failed():
		state = st.failed(state)
	case d.Redirected():
		state = st.ok(state)
	default:
		state = st.warn(state)
	}

	fmt.Fprintln(w, st.title("ROUTING DECISION"))
	fmt.Fprintln(w, strings.Repeat("-", headerSeparatorLen))
	fmt.Fprintf(w, "State:      %s\n", state)
	fmt.Fprintf(w, "Trail:      %s\n", strings.Join(trail, " -> "))
	if d.Mode != "" {
		fmt.Fprintf(w, "Mode:       %s (cache hit: %t)\n", d.Mode, d.CacheHit)
	}
	fmt.Fprintf(w, "Candidates: %d\n", d.Candidates)

	switch {
	case d.Redirected():
		fmt.Fprintf(w, "Node:       %s (confidence %.2f)\n", d.NodeID, d.Confidence)
		fmt.Fprintf(w, "Redirect:   %s\n", d.RedirectURL)
	case d.Failed():
		fmt.Fprintf(w, "Error:      %s: %s\n", d.Err.Kind, d.Err.Message)
		for _, k := range sortedKeys(d.Err.Details) {
			fmt.Fprintf(w, "            %s=%v\n", k, d.Err.Details[k])
		}
	case d.Response != nil:
		fmt.Fprintf(w, "Rendered:   %d %s, %d bytes\n",
			d.Response.Status, d.Response.Headers.Get("Content-Type"), len(d.Response.Body))
	}
	fmt.Fprintln(w, st.muted(fmt.Sprintf("Elapsed:    %s", d.Elapsed)))
}

// renderCandidates prints the ranked candidate table of --explain. DISTANCE is the
// distance in degrees between the request box center and the candidate coverage center.
func renderCandidates(w io.Writer, bbox *geo.BBox, ranked []router.Selection) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, newStyler(w).title("CANDIDATES"))
	fmt.Fprintln(w, strings.Repeat("-", headerSeparatorLen))
	if len(ranked) == 0 {
		fmt.Fprintln(w, "No candidates cover the request.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCAPABILITY\tNODE\tLEVEL\tHEALTH\tCONFIDENCE\tHEALTH/HIER/STATUS/FRESH\tDISTANCE\tACCEPTED")
	fmt.Fprintln(tw, "----\t----------\t----\t-----\t------\t----------\t------------------------\t--------\t--------")
	for i, sel := range ranked {
		f := sel.Score.Factors
		accepted := "no"
		if sel.Accepted {
			accepted = "yes"
		}
		if sel.AssumedGlobal {
			accepted += " (global)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%.2f\t%.2f/%.2f/%.2f/%.2f\t%s\t%s\n",
			i+1,
			sel.Candidate.ID(),
			sel.Candidate.Node.ID,
			sel.Candidate.Node.Level,
			sel.Candidate.Node.Health,
			sel.Confidence,
			f.Health, f.Hierarchy, f.Status, f.Freshness,
			centerDistance(bbox, sel.Candidate),
			accepted,
		)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table writer: %w", err)
	}
	return nil
}

// centerDistance formats the distance to the candidate's first defined coverage, or
// "-" without a request box or coverage.
func centerDistance(bbox *geo.BBox, c federation.Candidate) string {
	if bbox == nil {
		return "-"
	}
	coverages := c.Coverages()
	if len(coverages) == 0 {
		return "-"
	}
	box, _ := coverages[0].BBox()
	return fmt.Sprintf("%.2f", geo.CenterDistance(*bbox, box))
}
