package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const inventoryDemoSeedApplication = "inventory_demo"

type demoBatch struct {
	Ingredient string
	Quantity   string
	UnitPrice  string
	ExpiresIn  time.Duration
}

// Fixed ingredient IDs so reruns and cross-service demo data line up.
var demoIngredients = map[string]uuid.UUID{
	"flour":      uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
	"eggs":       uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad3"),
	"tomatoes":   uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad4"),
	"mozzarella": uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad5"),
	"basil":      uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad6"),
}

var demoBatches = []demoBatch{
	{Ingredient: "flour", Quantity: "25", UnitPrice: "0.80", ExpiresIn: 60 * 24 * time.Hour},
	{Ingredient: "flour", Quantity: "10", UnitPrice: "0.85", ExpiresIn: 14 * 24 * time.Hour},
	{Ingredient: "eggs", Quantity: "120", UnitPrice: "0.30", ExpiresIn: 21 * 24 * time.Hour},
	{Ingredient: "tomatoes", Quantity: "18", UnitPrice: "2.10", ExpiresIn: 5 * 24 * time.Hour},
	{Ingredient: "mozzarella", Quantity: "12", UnitPrice: "6.40", ExpiresIn: 10 * 24 * time.Hour},
	{Ingredient: "basil", Quantity: "2", UnitPrice: "14.00", ExpiresIn: 3 * 24 * time.Hour},
}

// ApplyDemoSeeds stocks the demo pantry.
func ApplyDemoSeeds(ctx context.Context, repo BatchRepo, db *mongo.Database, logger apt.Logger) error {
	if db == nil {
		return errors.New("database is required for demo seeding")
	}

	demoSeeds := []seed.Seed{
		{
			ID:          "2026-08-01_demo_batches_v1",
			Description: "Stock demo ingredient batches",
			Run: func(ctx context.Context) error {
				return seedDemoBatches(ctx, repo, logger)
			},
		},
	}

	tracker := seed.NewMongoTracker(db)

	logger.Info("Applying demo inventory seeds")
	if err := seed.Apply(ctx, tracker, demoSeeds, inventoryDemoSeedApplication); err != nil {
		return err
	}
	logger.Info("Demo inventory seeds applied successfully")
	return nil
}

func seedDemoBatches(ctx context.Context, repo BatchRepo, logger apt.Logger) error {
	now := time.Now()
	for _, spec := range demoBatches {
		ingredientID, ok := demoIngredients[spec.Ingredient]
		if !ok {
			return fmt.Errorf("unknown demo ingredient %q", spec.Ingredient)
		}

		existing, err := repo.ListByIngredient(ctx, ingredientID)
		if err != nil {
			return fmt.Errorf("list batches for %s: %w", spec.Ingredient, err)
		}
		if len(existing) > 0 {
			logger.Debug("Demo ingredient already stocked", "ingredient", spec.Ingredient)
			continue
		}

		batch := NewBatch()
		batch.IngredientID = ingredientID
		batch.Quantity = decimal.RequireFromString(spec.Quantity)
		batch.Reserved = decimal.Zero
		batch.UnitPrice = decimal.RequireFromString(spec.UnitPrice)
		batch.ExpiresAt = now.Add(spec.ExpiresIn)
		batch.ReceivedAt = now
		batch.BeforeCreate()

		if err := repo.Create(ctx, batch); err != nil {
			return fmt.Errorf("create batch for %s: %w", spec.Ingredient, err)
		}
		logger.Info("Seeded demo batch", "ingredient", spec.Ingredient, "quantity", spec.Quantity)
	}
	return nil
}

// ClearDemoSeeds removes the demo batches along with any reservations
// held against them, plus the seed tracker row.
func ClearDemoSeeds(ctx context.Context, db *mongo.Database, logger apt.Logger) error {
	ids := make([]uuid.UUID, 0, len(demoIngredients))
	for _, id := range demoIngredients {
		ids = append(ids, id)
	}
	filter := bson.M{
		"ingredient_id": bson.M{"$in": ids},
	}

	result, err := db.Collection("batches").DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete demo batches: %w", err)
	}
	logger.Info("Deleted demo batches", "count", result.DeletedCount)

	if _, err := db.Collection("reservations").DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("delete demo reservations: %w", err)
	}

	if _, err := db.Collection("_seeds").DeleteOne(ctx, bson.M{
		"_id": "2026-08-01_demo_batches_v1",
	}); err != nil {
		return fmt.Errorf("clear batch seed tracker: %w", err)
	}
	return nil
}

// DemoSeedingFunc returns a lifecycle start hook that seeds in the
// background.
func DemoSeedingFunc(seedCtx context.Context, repo BatchRepo, db *mongo.Database, logger apt.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting demo inventory seeding in background")
		go func() {
			if err := ApplyDemoSeeds(seedCtx, repo, db, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("Demo inventory seeds failed: %v", err)
			}
		}()
		return nil
	}
}
