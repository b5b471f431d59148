// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftware/drift/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists the (user, group) membership join in the
// group_memberships collection. Exactly one document exists per
// (user_id, group_id) pair — a unique index enforces this — and removal
// flips is_enabled to false rather than deleting, so history survives
// and a rejoin reactivates the same document.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("group_memberships")}
}

// Reconcile associates every user in userIDs with groupID, leaving each
// pair with exactly one enabled membership document.
//
// The requested set is split against the collection in one query:
// pairs with no document at all are bulk-inserted enabled, pairs with an
// existing document (enabled or not) are bulk-updated to enabled. The
// enable update is a no-op for already-active members, which makes the
// whole call idempotent.
//
// A concurrent Reconcile can win the insert for a pair classified as
// new here; the unique index turns the losing insert into a duplicate-key
// write error, which is folded into the update set instead of failing.
//
// Callers that need atomicity with other writes run this inside
// txn.WithTransaction and pass the session context through.
func (s *Store) Reconcile(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	if len(userIDs) == 0 {
		return nil
	}

	// Dedupe the request; repeated ids would otherwise race themselves
	// inside the InsertMany.
	seen := make(map[primitive.ObjectID]struct{}, len(userIDs))
	ids := make([]primitive.ObjectID, 0, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	// One query decides existing vs new for the whole set.
	cur, err := s.c.Find(ctx, bson.M{
		"group_id": groupID,
		"user_id":  bson.M{"$in": ids},
	})
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}
	existing := make(map[primitive.ObjectID]struct{}, len(ids))
	for cur.Next(ctx) {
		var row struct {
			UserID primitive.ObjectID `bson:"user_id"`
		}
		if err := cur.Decode(&row); err != nil {
			cur.Close(ctx)
			return fmt.Errorf("membership decode: %w", err)
		}
		existing[row.UserID] = struct{}{}
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return fmt.Errorf("membership cursor: %w", err)
	}
	cur.Close(ctx)

	now := time.Now().UTC()
	var toEnable []primitive.ObjectID
	var newIDs []primitive.ObjectID
	var docs []interface{}
	for _, id := range ids {
		if _, found := existing[id]; found {
			toEnable = append(toEnable, id)
			continue
		}
		newIDs = append(newIDs, id)
		docs = append(docs, models.Membership{
			UserID:    id,
			GroupID:   groupID,
			IsEnabled: true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if len(docs) > 0 {
		// ordered:false attempts every insert even when some collide
		// with a concurrent writer.
		opts := options.InsertMany().SetOrdered(false)
		if _, err := s.c.InsertMany(ctx, docs, opts); err != nil {
			var bulkErr mongo.BulkWriteException
			if !errors.As(err, &bulkErr) {
				return fmt.Errorf("membership insert: %w", err)
			}
			for _, we := range bulkErr.WriteErrors {
				if we.Code != 11000 {
					return fmt.Errorf("membership insert: %w", err)
				}
				// Lost an insert race: the document exists now, so
				// enable it with the update batch below.
				if we.Index >= 0 && we.Index < len(newIDs) {
					toEnable = append(toEnable, newIDs[we.Index])
				}
			}
		}
	}

	if len(toEnable) > 0 {
		_, err := s.c.UpdateMany(ctx,
			bson.M{"group_id": groupID, "user_id": bson.M{"$in": toEnable}},
			bson.M{"$set": bson.M{"is_enabled": true, "updated_at": now}},
		)
		if err != nil {
			return fmt.Errorf("membership enable: %w", err)
		}
	}

	return nil
}

// IsActiveMember reports whether userID currently holds an enabled
// membership in groupID. This is the authorization predicate for every
// group-scoped read and write; callers must not cache the result beyond
// a single decision.
func (s *Store) IsActiveMember(ctx context.Context, userID, groupID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"user_id":    userID,
		"group_id":   groupID,
		"is_enabled": true,
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ActiveGroupIDs returns the ids of every group userID is an enabled
// member of. The live router uses this as its connect-time subscription
// snapshot.
func (s *Store) ActiveGroupIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "is_enabled": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			GroupID primitive.ObjectID `bson:"group_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.GroupID)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Disable soft-removes the membership for (groupID, userID) by setting
// is_enabled to false. The document is kept so a later Reconcile can
// reactivate it. Returns whether a document matched.
func (s *Store) Disable(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID},
		bson.M{"$set": bson.M{"is_enabled": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// ListByGroup returns the memberships for a group. With enabledOnly set
// only active members are returned.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID, enabledOnly bool) ([]models.Membership, error) {
	filter := bson.M{"group_id": groupID}
	if enabledOnly {
		filter["is_enabled"] = true
	}
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.Membership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}
