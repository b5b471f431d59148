// Package membership coordinates group and membership writes that must
// land together, and owns the join/leave rules the HTTP and live layers
// both rely on.
package membership

import (
	"context"
	"errors"
	"fmt"

	groupstore "github.com/driftware/drift/internal/app/store/groups"
	membershipstore "github.com/driftware/drift/internal/app/store/memberships"
	"github.com/driftware/drift/internal/app/system/txn"
	"github.com/driftware/drift/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrGroupNotFound means the group id does not resolve.
	ErrGroupNotFound = errors.New("group not found")
	// ErrGroupNotPublic means a self-serve join hit a non-public group.
	ErrGroupNotPublic = errors.New("group is not public")
	// ErrNotAMember means a removal targeted a user with no membership.
	ErrNotAMember = errors.New("user is not a member of this group")
)

// Coordinator runs multi-document membership operations. Writes that
// must be atomic go through txn.WithTransaction, which degrades to
// plain execution on standalone Mongo; the unique (user_id, group_id)
// index keeps partial failures recoverable there, since retrying any
// operation converges on the same final state.
type Coordinator struct {
	client      *mongo.Client
	groups      *groupstore.Store
	memberships *membershipstore.Store
	logger      *zap.Logger
}

func NewCoordinator(client *mongo.Client, db *mongo.Database, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		client:      client,
		groups:      groupstore.New(db),
		memberships: membershipstore.New(db),
		logger:      logger,
	}
}

// CreateGroup creates a group and enrolls the creator plus memberIDs in
// one transaction. The creator is always a member regardless of the
// supplied list. Returns the created group.
func (c *Coordinator) CreateGroup(ctx context.Context, g models.Group, memberIDs []primitive.ObjectID) (models.Group, error) {
	if !models.IsValidGroupType(g.Type) {
		return models.Group{}, fmt.Errorf("invalid group type %q", g.Type)
	}

	var created models.Group
	err := txn.WithTransaction(ctx, c.client, func(ctx context.Context) error {
		var err error
		created, err = c.groups.Create(ctx, g)
		if err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		members := append([]primitive.ObjectID{g.CreatedBy}, memberIDs...)
		if err := c.memberships.Reconcile(ctx, created.ID, members); err != nil {
			return fmt.Errorf("enroll members: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Group{}, err
	}

	c.logger.Info("group created",
		zap.String("group_id", created.ID.Hex()),
		zap.String("type", created.Type),
		zap.Int("initial_members", 1+len(memberIDs)))
	return created, nil
}

// JoinPublicGroup enrolls userID in groupID if the group exists and is
// public. Joining a group the user already belongs to succeeds and
// leaves the membership active. Returns ErrGroupNotFound or
// ErrGroupNotPublic otherwise.
func (c *Coordinator) JoinPublicGroup(ctx context.Context, userID, groupID primitive.ObjectID) error {
	g, err := c.groups.GetByID(ctx, groupID)
	if err == mongo.ErrNoDocuments {
		return ErrGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if g.Type != models.GroupTypePublic {
		return ErrGroupNotPublic
	}

	err = txn.WithTransaction(ctx, c.client, func(ctx context.Context) error {
		return c.memberships.Reconcile(ctx, groupID, []primitive.ObjectID{userID})
	})
	if err != nil {
		return err
	}

	c.logger.Info("user joined group",
		zap.String("user_id", userID.Hex()),
		zap.String("group_id", groupID.Hex()))
	return nil
}

// AddMembers enrolls userIDs in groupID. The group must exist; member
// lists may mix new users, disabled memberships, and current members —
// all end up active.
func (c *Coordinator) AddMembers(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	if _, err := c.groups.GetByID(ctx, groupID); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrGroupNotFound
		}
		return fmt.Errorf("load group: %w", err)
	}
	err := txn.WithTransaction(ctx, c.client, func(ctx context.Context) error {
		return c.memberships.Reconcile(ctx, groupID, userIDs)
	})
	if err != nil {
		return err
	}

	c.logger.Info("members added",
		zap.String("group_id", groupID.Hex()),
		zap.Int("count", len(userIDs)))
	return nil
}

// RemoveMember disables userID's membership in groupID. Returns
// ErrNotAMember when no membership document exists for the pair.
func (c *Coordinator) RemoveMember(ctx context.Context, groupID, userID primitive.ObjectID) error {
	matched, err := c.memberships.Disable(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !matched {
		return ErrNotAMember
	}

	c.logger.Info("member removed",
		zap.String("user_id", userID.Hex()),
		zap.String("group_id", groupID.Hex()))
	return nil
}
