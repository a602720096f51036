package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/directory"
)

// NewMigrateCmd creates the migrate command that applies the directory schema.
func NewMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending directory schema migrations to PostgreSQL",
		Long: `Applies the embedded schema migrations (nodes, datasets, capabilities and
access history) to the PostgreSQL directory. Running it against a current schema is
a no-op.`,
		Example: `  # Migrate the database named in the configuration
  fedroute migrate

  # Migrate an explicit database
  fedroute migrate --database-url postgres://fedroute@localhost/fedroute?sslmode=disable`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := databaseURL
			if dsn == "" {
				dsn = config.GetGlobalConfig().Directory.DatabaseURL
			}
			if dsn == "" {
				return errors.New("no database configured: set directory.database_url, " +
					config.EnvDatabaseURL + " or --database-url")
			}

			ctx := cmd.Context()
			db, err := directory.OpenPostgres(ctx, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			version, err := directory.Migrate(db)
			if err != nil {
				return err
			}
			logger.Info().Ctx(ctx).Uint("schema_version", version).Msg("migrations applied")
			cmd.Printf("%s schema version %d\n", newStyler(cmd.OutOrStdout()).ok("Migrated:"), version)
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (overrides directory.database_url)")

	return cmd
}
