package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/directory/cache"
	"github.com/s100fed/fedroute/internal/router"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the configuration file for syntax and semantic correctness.

This includes:
- General configuration validation (server, limits, directory, cache, logging)
- Routing validation, reporting every problem at once:
  - min_confidence range and health threshold names
  - Node exclusion pattern syntax (glob and regex)
  - Renderer product/service names and duplicates
- Advisories that do not block startup, such as an unreachable min_confidence
  or recommendation weights that do not sum to 1`,
		Example: `  # Validate current configuration
  fedroute config validate

  # Validate a specific file and show detailed information
  fedroute config validate --config ./config.yaml --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()
	st := newStyler(cmd.OutOrStdout())

	hasRoutingWarnings, err := validateRoutingConfig(cmd, cfg)
	if err != nil {
		return err
	}

	// Routing validation reports every problem; this catches the remaining sections.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if hasRoutingWarnings {
		cmd.Println()
	}
	cmd.Println(st.ok("Configuration is valid"))

	if verbose {
		printVerboseDetails(cmd, cfg)
	}

	return nil
}

// validateRoutingConfig prints routing errors and warnings.
// Returns true if there are warnings, and an error if validation failed.
func validateRoutingConfig(cmd *cobra.Command, cfg *config.Config) (bool, error) {
	result := router.ValidateRoutingConfig(cfg)

	if result.HasErrors() {
		cmd.PrintErrln("Routing configuration errors:")
		for _, e := range result.Errors {
			cmd.PrintErrf("  - %s\n", e.Error())
		}
		return false, fmt.Errorf("routing configuration has %d error(s)", len(result.Errors))
	}

	if result.HasWarnings() {
		cmd.Println("Routing configuration warnings:")
		for _, w := range result.WarningMessages() {
			cmd.Printf("  - %s\n", w)
		}
		return true, nil
	}

	return false, nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	path := cfg.Path()
	if path == "" {
		path = "(defaults)"
	}
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Config file: %s\n", path)
	cmd.Printf("  Listen: %s\n", cfg.Server.Listen)
	cmd.Printf("  Directory driver: %s\n", cfg.Directory.Driver)
	cmd.Printf("  Min confidence: %.2f\n", cfg.Routing.MinConfidence)
	cmd.Printf("  Health threshold: %s\n", cfg.Routing.Threshold())
	cmd.Printf("  Cache: enabled=%t ttl=%s\n",
		cfg.Cache.Enabled, cache.FormatDuration(time.Duration(cfg.Cache.TTLSeconds)*time.Second))
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)

	printStrategyDetails(cmd)
	printRendererDetails(cmd, cfg)
	printExclusionDetails(cmd, cfg)
}

// printStrategyDetails prints the refresh strategy TTLs in name order.
func printStrategyDetails(cmd *cobra.Command) {
	ttls := cache.DefaultStrategyTTLs()
	names := make([]string, 0, len(ttls))
	for s := range ttls {
		names = append(names, string(s))
	}
	sort.Strings(names)
	cmd.Println("  Cache refresh strategies:")
	for _, name := range names {
		cmd.Printf("    - %s: %s\n", name, cache.FormatDuration(ttls[cache.Strategy(name)]))
	}
}

// printRendererDetails prints configured renderers.
func printRendererDetails(cmd *cobra.Command, cfg *config.Config) {
	if len(cfg.Renderers) == 0 {
		cmd.Println("  No local renderers configured")
		return
	}
	cmd.Printf("  Local renderers: %d\n", len(cfg.Renderers))
	for _, r := range cfg.Renderers {
		target := r.URL
		if target == "" {
			target = r.File
		}
		cmd.Printf("    - %s/%s (%s: %s)\n", r.Product, r.Service, r.Kind, target)
	}
}

// printExclusionDetails prints node exclusion patterns.
func printExclusionDetails(cmd *cobra.Command, cfg *config.Config) {
	if len(cfg.Routing.ExcludeNodes) == 0 {
		cmd.Println("  No excluded nodes")
		return
	}
	cmd.Printf("  Excluded node patterns: %d\n", len(cfg.Routing.ExcludeNodes))
	for _, p := range cfg.Routing.ExcludeNodes {
		cmd.Printf("    - %s %s\n", p.Type, p.Pattern)
	}
}
