package atrium

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atriumhq/atrium/api/pkg/allocation"
	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/prediction"
	"github.com/atriumhq/atrium/api/pkg/server"
	"github.com/atriumhq/atrium/api/pkg/simulation"
	"github.com/atriumhq/atrium/api/pkg/store"
	"github.com/atriumhq/atrium/api/pkg/workflow"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Start the atrium api server.",
		Example: "ADMIN_TOKEN=secret atrium serve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server config: %w", err)
			}
			configureLogging(cfg.App.LogLevel)
			return serve(cmd.Context(), &cfg)
		},
	}
}

// serve runs the full startup sequence: open the store, seed, train, then
// serve until interrupted. Seeding and training are idempotent so restarts
// are safe.
func serve(ctx context.Context, cfg *config.ServerConfig) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqliteStore, err := store.NewSQLiteStore(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer sqliteStore.Close()

	if err := sqliteStore.SeedSyntheticData(ctx, cfg.Synthetic); err != nil {
		return fmt.Errorf("failed to seed synthetic data: %w", err)
	}
	if err := sqliteStore.SeedDemoRequests(ctx); err != nil {
		return fmt.Errorf("failed to seed demo requests: %w", err)
	}

	predictor, err := prediction.NewPredictor(cfg, sqliteStore)
	if err != nil {
		return err
	}
	if err := predictor.Train(ctx); err != nil {
		// a model-not-ready failure leaves inference returning 503 but the
		// server still comes up so operators can seed and retrain
		if !errors.Is(err, prediction.ErrModelNotReady) {
			return fmt.Errorf("startup training failed: %w", err)
		}
		log.Warn().Err(err).Msg("startup training skipped, model not ready")
	}

	allocator := allocation.NewAllocator(cfg, sqliteStore, predictor)
	simulator := simulation.NewSimulator(cfg, sqliteStore, predictor)
	wf := workflow.NewWorkflow(cfg, sqliteStore, predictor, allocator, simulator)

	apiServer := server.NewServer(cfg, sqliteStore, predictor, allocator, simulator, wf)
	log.Info().
		Str("version", cfg.App.Version).
		Str("database", cfg.Store.DatabasePath).
		Msg("atrium starting")
	return apiServer.ListenAndServe(ctx)
}
