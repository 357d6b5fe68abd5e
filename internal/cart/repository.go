package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionRepository defines the durable cart storage per session key.
// Consumers define this interface, not the MongoDB implementation.
type SessionRepository interface {
	GetCart(ctx context.Context, sessionKey string) (*Cart, error)
	UpsertCart(ctx context.Context, sessionKey string, cart *Cart) error
	DeleteCart(ctx context.Context, sessionKey string) error
}

// sessionRecord is the persisted shape: the whole cart as one document
// keyed by the session. Written all-or-nothing on every mutation.
type sessionRecord struct {
	SessionKey string     `bson:"session_key"`
	Items      []CartItem `bson:"items"`
	Count      int        `bson:"count"`
	Total      float64    `bson:"total"`
	UpdatedAt  time.Time  `bson:"updated_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) SessionRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, sessionKey string) (*Cart, error) {
	var record sessionRecord

	filter := bson.M{"session_key": sessionKey}
	err := m.collection.FindOne(ctx, filter).Decode(&record)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoSavedCart
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	cart := &Cart{Items: record.Items}
	cart.recompute()
	return cart, nil
}

func (m *mongoRepository) UpsertCart(ctx context.Context, sessionKey string, cart *Cart) error {
	record := sessionRecord{
		SessionKey: sessionKey,
		Items:      cart.Items,
		Count:      cart.Count,
		Total:      cart.Total,
		UpdatedAt:  time.Now(),
	}

	filter := bson.M{"session_key": sessionKey}
	update := bson.M{"$set": record}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, sessionKey string) error {
	filter := bson.M{"session_key": sessionKey}

	_, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
