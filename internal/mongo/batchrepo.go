package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/internal/inventory"
)

type BatchRepo struct {
	collection *mongo.Collection
}

func NewBatchRepo(db *mongo.Database) *BatchRepo {
	return &BatchRepo{
		collection: db.Collection("batches"),
	}
}

func (r *BatchRepo) Start(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ingredient_id", Value: 1}, {Key: "expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("cannot create batch indexes: %w", err)
	}
	return nil
}

func (r *BatchRepo) Create(ctx context.Context, batch *inventory.Batch) error {
	if batch == nil {
		return fmt.Errorf("batch is nil")
	}
	if batch.ModelVersion == 0 {
		batch.ModelVersion = 1
	}

	if _, err := r.collection.InsertOne(ctx, batch); err != nil {
		return fmt.Errorf("cannot create batch: %w", err)
	}

	return nil
}

func (r *BatchRepo) Get(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var batch inventory.Batch
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&batch)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get batch: %w", err)
	}
	return &batch, nil
}

// ListByIngredient returns batches earliest expiry first, the order the
// ledger reserves in.
func (r *BatchRepo) ListByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]*inventory.Batch, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"ingredient_id": ingredientID},
		options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list batches by ingredient: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*inventory.Batch
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode batches: %w", err)
	}

	return result, nil
}

func (r *BatchRepo) List(ctx context.Context) ([]*inventory.Batch, error) {
	cursor, err := r.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list batches: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*inventory.Batch
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode batches: %w", err)
	}

	return result, nil
}

func (r *BatchRepo) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*inventory.Batch, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"expires_at": bson.M{"$lt": cutoff}},
		options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list expiring batches: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*inventory.Batch
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode batches: %w", err)
	}

	return result, nil
}

// Save writes the batch through its version guard. Every reservation and
// consumption flows through here, so stale writes surface as conflicts
// instead of lost stock.
func (r *BatchRepo) Save(ctx context.Context, batch *inventory.Batch) error {
	if batch == nil {
		return fmt.Errorf("batch is nil")
	}

	readVersion := batch.ModelVersion
	batch.ModelVersion++

	filter := bson.M{"_id": batch.ID, "model_version": readVersion}
	update := bson.M{"$set": batch}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		batch.ModelVersion = readVersion
		return fmt.Errorf("cannot update batch: %w", err)
	}
	if result.MatchedCount == 0 {
		batch.ModelVersion = readVersion
		return r.staleOrMissing(ctx, batch.ID)
	}

	return nil
}

func (r *BatchRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot delete batch: %w", err)
	}

	if result.DeletedCount == 0 {
		return fault.ErrNotFound
	}

	return nil
}

func (r *BatchRepo) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot check batch existence: %w", err)
	}
	if count == 0 {
		return fault.ErrNotFound
	}
	return fault.ErrVersionConflict
}
