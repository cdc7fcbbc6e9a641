package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/comandaclub/comanda/internal/billing"
	"github.com/comandaclub/comanda/internal/fault"
)

type BillRepo struct {
	collection *mongo.Collection
}

func NewBillRepo(db *mongo.Database) *BillRepo {
	return &BillRepo{
		collection: db.Collection("bills"),
	}
}

// Start creates the unique order_id index. The index is what makes bill
// issuance race-safe; the finalizer's read-then-create check alone is not.
func (r *BillRepo) Start(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("cannot create bill order index: %w", err)
	}
	return nil
}

func (r *BillRepo) Create(ctx context.Context, bill *billing.Bill) error {
	if bill == nil {
		return fmt.Errorf("bill is nil")
	}

	if _, err := r.collection.InsertOne(ctx, bill); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fault.ErrBillAlreadyExists
		}
		return fmt.Errorf("cannot create bill: %w", err)
	}

	return nil
}

func (r *BillRepo) Get(ctx context.Context, id uuid.UUID) (*billing.Bill, error) {
	var bill billing.Bill
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&bill)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get bill: %w", err)
	}
	return &bill, nil
}

func (r *BillRepo) GetByOrder(ctx context.Context, orderID uuid.UUID) (*billing.Bill, error) {
	var bill billing.Bill
	err := r.collection.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&bill)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get bill by order: %w", err)
	}
	return &bill, nil
}

func (r *BillRepo) List(ctx context.Context, limit, offset int) ([]*billing.Bill, error) {
	opts := options.Find().SetSort(bson.D{{Key: "issued_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list bills: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*billing.Bill
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode bills: %w", err)
	}

	return result, nil
}
