package atrium

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/store"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Initialize the database and seed the synthetic demo dataset.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server config: %w", err)
			}
			configureLogging(cfg.App.LogLevel)

			sqliteStore, err := store.NewSQLiteStore(cfg.Store.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer sqliteStore.Close()

			if err := sqliteStore.SeedSyntheticData(cmd.Context(), cfg.Synthetic); err != nil {
				return fmt.Errorf("failed to seed synthetic data: %w", err)
			}
			if err := sqliteStore.SeedDemoRequests(cmd.Context()); err != nil {
				return fmt.Errorf("failed to seed demo requests: %w", err)
			}
			return nil
		},
	}
}
