package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/internal/kitchen"
)

type EntryRepo struct {
	collection *mongo.Collection
}

func NewEntryRepo(db *mongo.Database) *EntryRepo {
	return &EntryRepo{
		collection: db.Collection("kitchen_entries"),
	}
}

func (r *EntryRepo) Start(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("cannot create kitchen entry indexes: %w", err)
	}
	return nil
}

func (r *EntryRepo) Create(ctx context.Context, entry *kitchen.QueueEntry) error {
	if entry == nil {
		return fmt.Errorf("entry is nil")
	}
	if entry.ModelVersion == 0 {
		entry.ModelVersion = 1
	}

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("cannot create kitchen entry: %w", err)
	}

	return nil
}

func (r *EntryRepo) Get(ctx context.Context, id uuid.UUID) (*kitchen.QueueEntry, error) {
	var entry kitchen.QueueEntry
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get kitchen entry: %w", err)
	}
	return &entry, nil
}

func (r *EntryRepo) GetByOrderItem(ctx context.Context, orderItemID uuid.UUID) (*kitchen.QueueEntry, error) {
	var entry kitchen.QueueEntry
	err := r.collection.FindOne(ctx, bson.M{"order_item_id": orderItemID}).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get kitchen entry by order item: %w", err)
	}
	return &entry, nil
}

func (r *EntryRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*kitchen.QueueEntry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list kitchen entries by order: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*kitchen.QueueEntry
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode kitchen entries: %w", err)
	}

	return result, nil
}

func (r *EntryRepo) List(ctx context.Context, filter kitchen.EntryFilter) ([]*kitchen.QueueEntry, error) {
	query := bson.M{}
	if filter.OrderID != nil {
		query["order_id"] = *filter.OrderID
	}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}

	// Oldest first; the board works the queue in arrival order.
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list kitchen entries: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*kitchen.QueueEntry
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode kitchen entries: %w", err)
	}

	return result, nil
}

// Save writes the entry through its version guard.
func (r *EntryRepo) Save(ctx context.Context, entry *kitchen.QueueEntry) error {
	if entry == nil {
		return fmt.Errorf("entry is nil")
	}

	readVersion := entry.ModelVersion
	entry.ModelVersion++

	filter := bson.M{"_id": entry.ID, "model_version": readVersion}
	update := bson.M{"$set": entry}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		entry.ModelVersion = readVersion
		return fmt.Errorf("cannot update kitchen entry: %w", err)
	}
	if result.MatchedCount == 0 {
		entry.ModelVersion = readVersion
		return r.staleOrMissing(ctx, entry.ID)
	}

	return nil
}

func (r *EntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot delete kitchen entry: %w", err)
	}

	if result.DeletedCount == 0 {
		return fault.ErrNotFound
	}

	return nil
}

func (r *EntryRepo) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot check kitchen entry existence: %w", err)
	}
	if count == 0 {
		return fault.ErrNotFound
	}
	return fault.ErrVersionConflict
}
