package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/internal/tables"
)

type TableRepo struct {
	collection *mongo.Collection
}

func NewTableRepo(db *mongo.Database) *TableRepo {
	return &TableRepo{
		collection: db.Collection("tables"),
	}
}

// Start creates the unique index on the table number.
func (r *TableRepo) Start(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("cannot create table number index: %w", err)
	}
	return nil
}

func (r *TableRepo) Create(ctx context.Context, t *tables.Table) error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}
	if t.ModelVersion == 0 {
		t.ModelVersion = 1
	}

	if _, err := r.collection.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("cannot create table: %w", err)
	}

	return nil
}

func (r *TableRepo) Get(ctx context.Context, id uuid.UUID) (*tables.Table, error) {
	var t tables.Table
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get table: %w", err)
	}
	return &t, nil
}

func (r *TableRepo) GetByNumber(ctx context.Context, number string) (*tables.Table, error) {
	var t tables.Table
	err := r.collection.FindOne(ctx, bson.M{"number": number}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get table by number: %w", err)
	}
	return &t, nil
}

func (r *TableRepo) List(ctx context.Context) ([]*tables.Table, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list tables: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*tables.Table
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode tables: %w", err)
	}

	return result, nil
}

// Save writes the table through its version guard. The filter matches the
// version the caller read; a concurrent writer makes the match fail.
func (r *TableRepo) Save(ctx context.Context, t *tables.Table) error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}

	readVersion := t.ModelVersion
	t.ModelVersion++

	filter := bson.M{"_id": t.ID, "model_version": readVersion}
	update := bson.M{"$set": t}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		t.ModelVersion = readVersion
		return fmt.Errorf("cannot update table: %w", err)
	}
	if result.MatchedCount == 0 {
		t.ModelVersion = readVersion
		return r.staleOrMissing(ctx, t.ID)
	}

	return nil
}

func (r *TableRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot delete table: %w", err)
	}

	if result.DeletedCount == 0 {
		return fault.ErrNotFound
	}

	return nil
}

func (r *TableRepo) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot check table existence: %w", err)
	}
	if count == 0 {
		return fault.ErrNotFound
	}
	return fault.ErrVersionConflict
}
