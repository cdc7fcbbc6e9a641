package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/comandaclub/comanda/internal/inventory"
	"github.com/comandaclub/comanda/internal/mongo"
	"github.com/comandaclub/comanda/internal/tables"
)

// SeedDemo applies the demo floor plan and demo inventory batches.
func SeedDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo seeding process")

	baseRepo := mongo.NewBaseRepo(config, logger)
	if err := baseRepo.Start(ctx); err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer baseRepo.Stop(ctx)

	db := baseRepo.GetDatabase()

	tableRepo := mongo.NewTableRepo(db)
	if err := tableRepo.Start(ctx); err != nil {
		return fmt.Errorf("start table repo: %w", err)
	}

	batchRepo := mongo.NewBatchRepo(db)
	if err := batchRepo.Start(ctx); err != nil {
		return fmt.Errorf("start batch repo: %w", err)
	}

	if err := tables.ApplyDemoSeeds(ctx, tableRepo, db, logger); err != nil {
		return fmt.Errorf("seed demo tables: %w", err)
	}

	if err := inventory.ApplyDemoSeeds(ctx, batchRepo, db, logger); err != nil {
		return fmt.Errorf("seed demo batches: %w", err)
	}

	return nil
}
