// internal/app/store/messages/messagestore.go
package messagestore

import (
	"context"
	"time"

	"github.com/driftware/drift/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultPageLimit is used when a history query gives no limit.
const DefaultPageLimit = 50

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("messages")}
}

// Append persists a message and returns it with id and timestamp set.
// Membership authorization happens before this call; the store records
// whatever it is given.
func (s *Store) Append(ctx context.Context, userID, groupID primitive.ObjectID, content string) (models.Message, error) {
	msg := models.Message{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		GroupID:   groupID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Page returns a group's messages newest first. limit <= 0 falls back
// to DefaultPageLimit; offset < 0 is treated as zero.
func (s *Store) Page(ctx context.Context, groupID primitive.ObjectID, limit, offset int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var msgs []models.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
