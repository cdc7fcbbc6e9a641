package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/comandaclub/comanda/internal/inventory"
	"github.com/comandaclub/comanda/internal/mongo"
	"github.com/comandaclub/comanda/internal/tables"
)

// ClearDemo removes the demo floor plan, demo batches and their
// reservations. Orders taken against demo tables are left alone.
func ClearDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Clearing demo data")

	baseRepo := mongo.NewBaseRepo(config, logger)
	if err := baseRepo.Start(ctx); err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer baseRepo.Stop(ctx)

	db := baseRepo.GetDatabase()

	if err := tables.ClearDemoSeeds(ctx, db, logger); err != nil {
		return fmt.Errorf("clear demo tables: %w", err)
	}

	if err := inventory.ClearDemoSeeds(ctx, db, logger); err != nil {
		return fmt.Errorf("clear demo batches: %w", err)
	}

	return nil
}
