package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/comandaclub/comanda/internal/fault"
	"github.com/comandaclub/comanda/internal/inventory"
)

type ReservationRepo struct {
	collection *mongo.Collection
}

func NewReservationRepo(db *mongo.Database) *ReservationRepo {
	return &ReservationRepo{
		collection: db.Collection("reservations"),
	}
}

func (r *ReservationRepo) Start(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "ingredient_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("cannot create reservation index: %w", err)
	}
	return nil
}

func (r *ReservationRepo) Create(ctx context.Context, res *inventory.Reservation) error {
	if res == nil {
		return fmt.Errorf("reservation is nil")
	}

	if _, err := r.collection.InsertOne(ctx, res); err != nil {
		return fmt.Errorf("cannot create reservation: %w", err)
	}

	return nil
}

func (r *ReservationRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*inventory.Reservation, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID})
	if err != nil {
		return nil, fmt.Errorf("cannot list reservations by order: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*inventory.Reservation
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode reservations: %w", err)
	}

	return result, nil
}

func (r *ReservationRepo) ListByOrderAndIngredient(ctx context.Context, orderID, ingredientID uuid.UUID) ([]*inventory.Reservation, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID, "ingredient_id": ingredientID})
	if err != nil {
		return nil, fmt.Errorf("cannot list reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*inventory.Reservation
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode reservations: %w", err)
	}

	return result, nil
}

func (r *ReservationRepo) Save(ctx context.Context, res *inventory.Reservation) error {
	if res == nil {
		return fmt.Errorf("reservation is nil")
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": res.ID}, bson.M{"$set": res})
	if err != nil {
		return fmt.Errorf("cannot update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return fault.ErrNotFound
	}

	return nil
}

func (r *ReservationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("cannot delete reservation: %w", err)
	}

	if result.DeletedCount == 0 {
		return fault.ErrNotFound
	}

	return nil
}
