package tables

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const tableDemoSeedApplication = "table_demo"

type demoTable struct {
	Number   string
	Capacity int
}

var demoTables = []demoTable{
	{Number: "Window-1", Capacity: 2},
	{Number: "Center-2", Capacity: 4},
	{Number: "Patio-3", Capacity: 2},
	{Number: "Booth-7", Capacity: 6},
	{Number: "Terrace-8", Capacity: 4},
}

// ApplyDemoSeeds ensures the demo floor plan exists.
func ApplyDemoSeeds(ctx context.Context, repo TableRepo, db *mongo.Database, logger apt.Logger) error {
	if db == nil {
		return errors.New("database is required for demo seeding")
	}

	demoSeeds := []seed.Seed{
		{
			ID:          "2026-08-01_demo_tables_v1",
			Description: "Create the demo floor plan",
			Run: func(ctx context.Context) error {
				return seedDemoTables(ctx, repo, logger)
			},
		},
	}

	tracker := seed.NewMongoTracker(db)

	logger.Info("Applying demo table seeds")
	if err := seed.Apply(ctx, tracker, demoSeeds, tableDemoSeedApplication); err != nil {
		return err
	}
	logger.Info("Demo table seeds applied successfully")
	return nil
}

func seedDemoTables(ctx context.Context, repo TableRepo, logger apt.Logger) error {
	for _, spec := range demoTables {
		existing, err := repo.GetByNumber(ctx, spec.Number)
		if err != nil {
			return fmt.Errorf("find table %s: %w", spec.Number, err)
		}
		if existing != nil {
			logger.Debug("Demo table already exists", "number", spec.Number)
			continue
		}

		table := NewTable()
		table.Number = spec.Number
		table.Capacity = spec.Capacity
		table.BeforeCreate()

		if err := repo.Create(ctx, table); err != nil {
			return fmt.Errorf("create table %s: %w", spec.Number, err)
		}
		logger.Info("Seeded demo table", "number", spec.Number, "capacity", spec.Capacity)
	}
	return nil
}

// ClearDemoSeeds removes the demo floor plan and its seed tracker row.
func ClearDemoSeeds(ctx context.Context, db *mongo.Database, logger apt.Logger) error {
	numbers := make([]string, 0, len(demoTables))
	for _, spec := range demoTables {
		numbers = append(numbers, spec.Number)
	}

	result, err := db.Collection("tables").DeleteMany(ctx, bson.M{
		"number": bson.M{"$in": numbers},
	})
	if err != nil {
		return fmt.Errorf("delete demo tables: %w", err)
	}
	logger.Info("Deleted demo tables", "count", result.DeletedCount)

	if _, err := db.Collection("_seeds").DeleteOne(ctx, bson.M{
		"_id": "2026-08-01_demo_tables_v1",
	}); err != nil {
		return fmt.Errorf("clear table seed tracker: %w", err)
	}
	return nil
}

// DemoSeedingFunc returns a lifecycle start hook that seeds in the
// background, so a slow Mongo does not block startup.
func DemoSeedingFunc(seedCtx context.Context, repo TableRepo, db *mongo.Database, logger apt.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting demo table seeding in background")
		go func() {
			if err := ApplyDemoSeeds(seedCtx, repo, db, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("Demo table seeds failed: %v", err)
			}
		}()
		return nil
	}
}
