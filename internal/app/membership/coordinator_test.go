package membership

import (
	"context"
	"errors"
	"testing"

	groupstore "github.com/driftware/drift/internal/app/store/groups"
	membershipstore "github.com/driftware/drift/internal/app/store/memberships"
	"github.com/driftware/drift/internal/app/system/txn"
	"github.com/driftware/drift/internal/domain/models"
	"github.com/driftware/drift/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewCoordinator(db.Client(), db, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestCreateGroup(t *testing.T) {
	coord, fixtures := newTestCoordinator(t)
	ctx := testutil.TestContext(t)
	members := membershipstore.New(fixtures.DB())

	creator := fixtures.CreateUser(ctx, "Creator", "creator@test.com")
	other := fixtures.CreateUser(ctx, "Other", "other@test.com")

	t.Run("creator and members enrolled", func(t *testing.T) {
		g, err := coord.CreateGroup(ctx, models.Group{
			Title:     "Hiking",
			Type:      models.GroupTypePrivate,
			CreatedBy: creator.ID,
		}, []primitive.ObjectID{other.ID})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if g.ID.IsZero() {
			t.Fatal("CreateGroup should return the created group")
		}

		for _, uid := range []primitive.ObjectID{creator.ID, other.ID} {
			active, err := members.IsActiveMember(ctx, uid, g.ID)
			if err != nil {
				t.Fatalf("IsActiveMember failed: %v", err)
			}
			if !active {
				t.Errorf("user %s should be enrolled", uid.Hex())
			}
		}
	})

	t.Run("creator only", func(t *testing.T) {
		g, err := coord.CreateGroup(ctx, models.Group{
			Title:     "Solo",
			Type:      models.GroupTypePublic,
			CreatedBy: creator.ID,
		}, nil)
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		count, err := fixtures.DB().Collection("group_memberships").
			CountDocuments(ctx, bson.M{"group_id": g.ID})
		if err != nil {
			t.Fatalf("CountDocuments failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 membership, got %d", count)
		}
	})

	t.Run("creator duplicated in member list", func(t *testing.T) {
		g, err := coord.CreateGroup(ctx, models.Group{
			Title:     "Echo",
			Type:      models.GroupTypePrivate,
			CreatedBy: creator.ID,
		}, []primitive.ObjectID{creator.ID})
		if err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		count, err := fixtures.DB().Collection("group_memberships").
			CountDocuments(ctx, bson.M{"group_id": g.ID})
		if err != nil {
			t.Fatalf("CountDocuments failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 membership, got %d", count)
		}
	})

	t.Run("invalid type rejected", func(t *testing.T) {
		_, err := coord.CreateGroup(ctx, models.Group{
			Title:     "Bad",
			Type:      "secret",
			CreatedBy: creator.ID,
		}, nil)
		if err == nil {
			t.Error("expected error for invalid group type")
		}
	})
}

func TestEnrollmentRollsBackOnFailure(t *testing.T) {
	_, fixtures := newTestCoordinator(t)
	db := fixtures.DB()
	testutil.RequireTransactions(t, db)
	ctx := testutil.TestContext(t)

	groups := groupstore.New(db)
	members := membershipstore.New(db)
	creator := fixtures.CreateUser(ctx, "Creator", "creator@test.com")
	cause := errors.New("step after enrollment failed")

	t.Run("group creation unit", func(t *testing.T) {
		var created models.Group
		err := txn.WithTransaction(ctx, db.Client(), func(ctx context.Context) error {
			var err error
			created, err = groups.Create(ctx, models.Group{
				Title:     "Doomed",
				Type:      models.GroupTypePrivate,
				CreatedBy: creator.ID,
			})
			if err != nil {
				return err
			}
			if err := members.Reconcile(ctx, created.ID, []primitive.ObjectID{creator.ID}); err != nil {
				return err
			}
			return cause
		})
		if !errors.Is(err, cause) {
			t.Fatalf("expected the injected failure, got %v", err)
		}

		if _, err := groups.GetByID(ctx, created.ID); err != mongo.ErrNoDocuments {
			t.Errorf("group should not survive the rollback, got err %v", err)
		}
		count, err := db.Collection("group_memberships").
			CountDocuments(ctx, bson.M{"group_id": created.ID})
		if err != nil {
			t.Fatalf("CountDocuments failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 memberships after rollback, got %d", count)
		}
	})

	t.Run("mixed reconcile unit", func(t *testing.T) {
		group := fixtures.CreateGroup(ctx, "Team", models.GroupTypePrivate, creator.ID)
		disabled := fixtures.CreateUser(ctx, "Disabled", "disabled@test.com")
		fresh := fixtures.CreateUser(ctx, "Fresh", "fresh@test.com")
		fixtures.CreateMembership(ctx, disabled.ID, group.ID, false)

		err := txn.WithTransaction(ctx, db.Client(), func(ctx context.Context) error {
			if err := members.Reconcile(ctx, group.ID,
				[]primitive.ObjectID{disabled.ID, fresh.ID}); err != nil {
				return err
			}
			return cause
		})
		if !errors.Is(err, cause) {
			t.Fatalf("expected the injected failure, got %v", err)
		}

		// Neither half of the reconciliation is visible: the disabled
		// row stays disabled and the insert is gone.
		active, err := members.IsActiveMember(ctx, disabled.ID, group.ID)
		if err != nil {
			t.Fatalf("IsActiveMember failed: %v", err)
		}
		if active {
			t.Error("disabled membership must not be re-enabled after rollback")
		}
		count, err := db.Collection("group_memberships").
			CountDocuments(ctx, bson.M{"user_id": fresh.ID, "group_id": group.ID})
		if err != nil {
			t.Fatalf("CountDocuments failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected no row for the new member after rollback, got %d", count)
		}
	})
}

func TestJoinPublicGroup(t *testing.T) {
	coord, fixtures := newTestCoordinator(t)
	ctx := testutil.TestContext(t)
	members := membershipstore.New(fixtures.DB())

	creator := fixtures.CreateUser(ctx, "Creator", "creator@test.com")
	joiner := fixtures.CreateUser(ctx, "Joiner", "joiner@test.com")
	public := fixtures.CreateGroup(ctx, "Open", models.GroupTypePublic, creator.ID)
	private := fixtures.CreateGroup(ctx, "Closed", models.GroupTypePrivate, creator.ID)

	t.Run("joins a public group", func(t *testing.T) {
		if err := coord.JoinPublicGroup(ctx, joiner.ID, public.ID); err != nil {
			t.Fatalf("JoinPublicGroup failed: %v", err)
		}
		active, err := members.IsActiveMember(ctx, joiner.ID, public.ID)
		if err != nil {
			t.Fatalf("IsActiveMember failed: %v", err)
		}
		if !active {
			t.Error("joiner should be an active member")
		}
	})

	t.Run("idempotent rejoin", func(t *testing.T) {
		if err := coord.JoinPublicGroup(ctx, joiner.ID, public.ID); err != nil {
			t.Fatalf("repeat JoinPublicGroup failed: %v", err)
		}
		count, err := fixtures.DB().Collection("group_memberships").CountDocuments(ctx,
			bson.M{"user_id": joiner.ID, "group_id": public.ID})
		if err != nil {
			t.Fatalf("CountDocuments failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 membership, got %d", count)
		}
	})

	t.Run("private group refused", func(t *testing.T) {
		if err := coord.JoinPublicGroup(ctx, joiner.ID, private.ID); err != ErrGroupNotPublic {
			t.Errorf("expected ErrGroupNotPublic, got %v", err)
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		if err := coord.JoinPublicGroup(ctx, joiner.ID, primitive.NewObjectID()); err != ErrGroupNotFound {
			t.Errorf("expected ErrGroupNotFound, got %v", err)
		}
	})
}

func TestAddMembers(t *testing.T) {
	coord, fixtures := newTestCoordinator(t)
	ctx := testutil.TestContext(t)
	members := membershipstore.New(fixtures.DB())

	creator := fixtures.CreateUser(ctx, "Creator", "creator@test.com")
	group := fixtures.CreateGroup(ctx, "Team", models.GroupTypePrivate, creator.ID)

	u1 := fixtures.CreateUser(ctx, "One", "one@test.com")
	u2 := fixtures.CreateUser(ctx, "Two", "two@test.com")
	fixtures.CreateMembership(ctx, u2.ID, group.ID, false)

	if err := coord.AddMembers(ctx, group.ID, []primitive.ObjectID{u1.ID, u2.ID}); err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}

	for _, uid := range []primitive.ObjectID{u1.ID, u2.ID} {
		active, err := members.IsActiveMember(ctx, uid, group.ID)
		if err != nil {
			t.Fatalf("IsActiveMember failed: %v", err)
		}
		if !active {
			t.Errorf("user %s should be active after AddMembers", uid.Hex())
		}
	}

	t.Run("unknown group", func(t *testing.T) {
		err := coord.AddMembers(ctx, primitive.NewObjectID(), []primitive.ObjectID{u1.ID})
		if err != ErrGroupNotFound {
			t.Errorf("expected ErrGroupNotFound, got %v", err)
		}
	})
}

func TestRemoveMember(t *testing.T) {
	coord, fixtures := newTestCoordinator(t)
	ctx := testutil.TestContext(t)
	members := membershipstore.New(fixtures.DB())

	creator := fixtures.CreateUser(ctx, "Creator", "creator@test.com")
	group := fixtures.CreateGroup(ctx, "Team", models.GroupTypePrivate, creator.ID)
	user := fixtures.CreateUser(ctx, "Member", "member@test.com")
	fixtures.CreateMembership(ctx, user.ID, group.ID, true)

	if err := coord.RemoveMember(ctx, group.ID, user.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	active, err := members.IsActiveMember(ctx, user.ID, group.ID)
	if err != nil {
		t.Fatalf("IsActiveMember failed: %v", err)
	}
	if active {
		t.Error("membership should be inactive after removal")
	}

	t.Run("rejoin after removal", func(t *testing.T) {
		publicGroup := fixtures.CreateGroup(ctx, "Open", models.GroupTypePublic, creator.ID)
		fixtures.CreateMembership(ctx, user.ID, publicGroup.ID, false)

		if err := coord.JoinPublicGroup(ctx, user.ID, publicGroup.ID); err != nil {
			t.Fatalf("rejoin failed: %v", err)
		}
		active, err := members.IsActiveMember(ctx, user.ID, publicGroup.ID)
		if err != nil {
			t.Fatalf("IsActiveMember failed: %v", err)
		}
		if !active {
			t.Error("rejoin should reactivate the membership")
		}
	})

	t.Run("never a member", func(t *testing.T) {
		if err := coord.RemoveMember(ctx, group.ID, primitive.NewObjectID()); err != ErrNotAMember {
			t.Errorf("expected ErrNotAMember, got %v", err)
		}
	})
}
