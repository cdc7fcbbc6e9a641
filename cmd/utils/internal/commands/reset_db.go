package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/comandaclub/comanda/internal/mongo"
)

// ResetDB drops the comanda database. Everything goes, including the
// seed tracker, so a later seed-demo starts from scratch.
func ResetDB(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Resetting database")

	baseRepo := mongo.NewBaseRepo(config, logger)
	if err := baseRepo.Start(ctx); err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer baseRepo.Stop(ctx)

	db := baseRepo.GetDatabase()
	if err := db.Drop(ctx); err != nil {
		return fmt.Errorf("drop database %s: %w", db.Name(), err)
	}

	logger.Infof("Dropped database: %s", db.Name())
	return nil
}
