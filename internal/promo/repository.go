package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrPromoNotFound = errors.New("promo not found")

type Repository interface {
	GetActive(ctx context.Context, now time.Time) ([]Promo, error)
	GetByCode(ctx context.Context, code string) (*Promo, error)
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("promos"),
	}
}

// GetActive returns promos whose validity window covers now. The end-date
// day is counted whole, matching Promo.Applicable.
func (m *mongoRepository) GetActive(ctx context.Context, now time.Time) ([]Promo, error) {
	y, mo, d := now.Date()
	dayStart := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())

	filter := bson.M{
		"start_date": bson.M{"$lte": now},
		"end_date":   bson.M{"$gte": dayStart},
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "featured", Value: -1},
		{Key: "created_at", Value: -1},
	})

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query promos: %w", err)
	}
	defer cursor.Close(ctx)

	var promos []Promo
	if err := cursor.All(ctx, &promos); err != nil {
		return nil, fmt.Errorf("failed to decode promos: %w", err)
	}

	return promos, nil
}

// GetByCode does a case-insensitive exact-match lookup: codes are stored
// lowercased and the query folds the input the same way.
func (m *mongoRepository) GetByCode(ctx context.Context, code string) (*Promo, error) {
	code = strings.ToLower(strings.TrimSpace(code))

	var promo Promo
	err := m.collection.FindOne(ctx, bson.M{"code": code}).Decode(&promo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("failed to get promo: %w", err)
	}

	return &promo, nil
}
