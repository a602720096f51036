package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/s100fed/fedroute/internal/api"
	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/tui"
)

// maxWhyLen truncates the explanation column of the table output.
const maxWhyLen = 60

// RecommendFlags holds the flags of the recommend command.
type RecommendFlags struct {
	Products []string
	Services []string
	BBox     string
	Context  string
	User     string
	Limit       int
	Output      string
	Interactive bool
}

// errInteractiveNoTTY rejects --interactive when stdout is not a terminal.
var errInteractiveNoTTY = errors.New("interactive mode requires a terminal")

// NewRecommendCmd creates the recommend command that ranks services for a user.
func NewRecommendCmd() *cobra.Command {
	var flags RecommendFlags

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank federation services for a user, area and search context",
		Long: `Ranks the services in the configured directory the same way the
/discovery/recommend endpoint does: service quality, the user's access history,
keyword relevance to --context and proximity to --bbox.`,
		Example: `  # Top services for all products
  fedroute recommend

  # Bathymetry services near Shanghai for a frequent user, as JSON
  fedroute recommend --product S102 --bbox 121,31,122,32 --user captain --output json

  # Keyword search over node and dataset names
  fedroute recommend --context "port approach" --limit 5

  # Browse, filter and sort the ranking in the terminal
  fedroute recommend --product S101 --interactive`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecommend(cmd, flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.Products, "product", nil, "product types to include (repeatable or comma-separated)")
	cmd.Flags().StringSliceVar(&flags.Services, "service", nil, "service types to include (repeatable or comma-separated)")
	cmd.Flags().StringVar(&flags.BBox, "bbox", "", "area of interest as minX,minY,maxX,maxY")
	cmd.Flags().StringVar(&flags.Context, "context", "", "free-text search context")
	cmd.Flags().StringVar(&flags.User, "user", "", "user id whose access history personalizes the ranking")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "maximum recommendations (0 = recommend.default_limit)")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", outputTable, "output format: table or json")
	cmd.Flags().BoolVarP(&flags.Interactive, "interactive", "i", false, "browse the ranking in an interactive terminal view")

	return cmd
}

func runRecommend(cmd *cobra.Command, flags RecommendFlags) error {
	if err := validateOutputFormat(flags.Output); err != nil {
		return err
	}
	if flags.Interactive {
		f, ok := cmd.OutOrStdout().(*os.File)
		if !ok || !isTerminal(f) {
			return errInteractiveNoTTY
		}
	}
	cfg := config.GetGlobalConfig()

	q, err := api.ParseRecommendQuery(flags.queryParams(), cfg.Recommend.DefaultLimit, cfg.Recommend.MaxLimit)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	srv, err := api.New(
		api.WithRouter(rt.router),
		api.WithStore(rt.store),
		api.WithHistory(rt.history),
		api.WithConfig(cfg),
	)
	if err != nil {
		return err
	}

	if flags.Interactive {
		model := tui.NewRecommendationsModelWithLoading(ctx, func(ctx context.Context) (api.RecommendResponse, error) {
			return srv.Recommend(ctx, q)
		})
		return tui.RunRecommendations(ctx, model, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	resp, err := srv.Recommend(ctx, q)
	if err != nil {
		return err
	}

	if flags.Output == outputJSON {
		return writeJSON(cmd.OutOrStdout(), resp)
	}
	return renderRecommendations(cmd.OutOrStdout(), resp)
}

// queryParams maps the flags onto the /discovery/recommend query parameters.
func (f RecommendFlags) queryParams() url.Values {
	params := url.Values{}
	if len(f.Products) > 0 {
		params.Set("productTypes", strings.Join(f.Products, ","))
	}
	if len(f.Services) > 0 {
		params.Set("serviceTypes", strings.Join(f.Services, ","))
	}
	if f.BBox != "" {
		params.Set("bbox", f.BBox)
	}
	if f.Context != "" {
		params.Set("context", f.Context)
	}
	if f.User != "" {
		params.Set("userId", f.User)
	}
	if f.Limit != 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	return params
}

func renderRecommendations(w io.Writer, resp api.RecommendResponse) error {
	st := newStyler(w)
	p := message.NewPrinter(language.English)

	fmt.Fprintln(w, st.title("RECOMMENDATIONS"))
	fmt.Fprintln(w, strings.Repeat("-", headerSeparatorLen))
	fmt.Fprintln(w, p.Sprintf("Ranked %d of %d candidates", resp.Metadata.ReturnedRecommendations,
		resp.Metadata.TotalCandidates))
	if resp.Metadata.Context.UserID != "" {
		fmt.Fprintf(w, "User: %s\n", resp.Metadata.Context.UserID)
	}
	fmt.Fprintln(w)

	if len(resp.Recommendations) == 0 {
		fmt.Fprintln(w, "No recommendations available.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tCONFIDENCE\tPRODUCT\tSERVICE\tNODE\tENDPOINT\tWHY")
	fmt.Fprintln(tw, "----\t-----\t----------\t-------\t-------\t----\t--------\t---")
	for i, rec := range resp.Recommendations {
		why := strings.Join(rec.Explanations, "; ")
		if len(why) > maxWhyLen {
			why = why[:maxWhyLen-3] + "..."
		}
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			rec.Score,
			rec.Confidence,
			rec.Capability.ProductType,
			rec.Capability.ServiceType,
			rec.Node.ID,
			rec.Capability.Endpoint,
			why,
		)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table writer: %w", err)
	}
	fmt.Fprintln(w, st.muted("Generated "+resp.Metadata.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	return nil
}
