package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/logging"
)

// annotationSkipConfig marks commands that must run even when the configuration file
// cannot be loaded.
const annotationSkipConfig = "fedroute/skip-config"

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the fedroute CLI.
// It loads the configuration, wires up logging and tracing, and registers the
// serve, route, recommend, config and migrate subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:           "fedroute",
		Short:         "Federated S-100 service resolution and routing",
		Long:          "fedroute: resolve S-100 service requests across a federation of nodes and recommend services",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().String("config", "", "path to the configuration file (default ~/.fedroute/config.yaml)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.AddCommand(
		NewServeCmd(), NewRouteCmd(), NewRecommendCmd(),
		newConfigCmd(), NewMigrateCmd(),
	)

	return cmd
}

const rootCmdExample = `  # Start the routing service
  fedroute serve --config /etc/fedroute/config.yaml

  # Route a GetMap request offline and show every candidate considered
  fedroute route S101 WMS --param REQUEST=GetMap --param BBOX=121,31,122,32 \
    --param WIDTH=256 --param HEIGHT=256 --explain

  # Recommend bathymetry services near Shanghai for a user
  fedroute recommend --product S102 --bbox 121,31,122,32 --user captain

  # Write a default configuration file
  fedroute config init

  # Apply database migrations
  fedroute migrate`

// loadConfig reads the configuration named by --config (or the default location) and
// installs it as the global configuration.
func loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if _, skip := cmd.Annotations[annotationSkipConfig]; skip {
			config.SetGlobalConfig(config.New())
			return nil
		}
		return err
	}
	config.SetGlobalConfig(cfg)
	return nil
}

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigValidateCmd())
	return cmd
}

// configPathFlag returns the --config value, falling back to the default location.
func configPathFlag(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return path, nil
	}
	p, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("resolving config path: %w", err)
	}
	return p, nil
}
