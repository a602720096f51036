package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s100fed/fedroute/internal/config"
)

// NewConfigInitCmd creates the config init command for initializing configuration.
// The file is written to --config when given, otherwise to ~/.fedroute/config.yaml
// (or $FEDROUTE_HOME/config.yaml).
func NewConfigInitCmd() *cobra.Command {
	var (
		force    bool
		snapshot string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

The defaults describe a single-node deployment: the memory directory driver, routing
with min_confidence 0.5 and HEALTHY nodes only, and no local renderers.`,
		Example: `  # Create the default configuration
  fedroute config init

  # Create a configuration pointing at a directory snapshot
  fedroute config init --snapshot /etc/fedroute/directory.yaml

  # Create configuration, overwriting existing
  fedroute config init --force`,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPathFlag(cmd)
			if err != nil {
				return err
			}
			return initConfig(cmd, path, snapshot, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "directory snapshot file for the memory driver")

	return cmd
}

// initConfig writes the default configuration to path.
func initConfig(cmd *cobra.Command, path, snapshot string, force bool) error {
	// Check if config already exists and force isn't set
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", path, err)
		}
	}

	cfg := config.New()
	cfg.Directory.Snapshot = snapshot
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", path)

	return nil
}
