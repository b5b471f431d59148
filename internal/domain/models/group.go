// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group type values. A public group can be joined by any authenticated
// user; a private group grows only through member additions by existing
// members.
const (
	GroupTypePublic  = "public"
	GroupTypePrivate = "private"
)

// IsValidGroupType reports whether t is a recognized group type.
func IsValidGroupType(t string) bool {
	return t == GroupTypePublic || t == GroupTypePrivate
}

// Group represents a chat group.
//
// NOTE:
//   - Member lists are not embedded on Group. All membership is stored
//     in the group_memberships collection and queried on demand.
//   - Group documents are immutable after creation (no update/delete
//     path in this service).
type Group struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Type        string             `bson:"type" json:"type"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
