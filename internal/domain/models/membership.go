// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership is the authoritative join between users and groups.
// Exactly one document per (user_id, group_id); removal flips IsEnabled
// to false rather than deleting, so a rejoin reactivates the same row.
type Membership struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	IsEnabled bool               `bson:"is_enabled" json:"is_enabled"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
