package atrium

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/prediction"
	"github.com/atriumhq/atrium/api/pkg/store"
)

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train the idle-probability model from the stored booking history.",
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

			predictor, err := prediction.NewPredictor(&cfg, sqliteStore)
			if err != nil {
				return err
			}
			return predictor.Train(cmd.Context())
		},
	}
}
