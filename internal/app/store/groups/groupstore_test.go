package groupstore

import (
	"testing"

	"github.com/driftware/drift/internal/domain/models"
	"github.com/driftware/drift/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestCreateAndGetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := New(db)

	creator := primitive.NewObjectID()
	created, err := store.Create(ctx, models.Group{
		Title:       "Morning Run Club",
		Type:        models.GroupTypePublic,
		CreatedBy:   creator,
		Description: "Daily runs at dawn",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID.IsZero() {
		t.Fatal("Create should assign an id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("Create should set timestamps")
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Morning Run Club" || got.Type != models.GroupTypePublic || got.CreatedBy != creator {
		t.Errorf("GetByID returned wrong group: %+v", got)
	}

	t.Run("unknown id", func(t *testing.T) {
		if _, err := store.GetByID(ctx, primitive.NewObjectID()); err != mongo.ErrNoDocuments {
			t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
		}
	})
}

func TestListByType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := New(db)

	creator := primitive.NewObjectID()
	for _, g := range []models.Group{
		{Title: "Open One", Type: models.GroupTypePublic, CreatedBy: creator},
		{Title: "Open Two", Type: models.GroupTypePublic, CreatedBy: creator},
		{Title: "Closed", Type: models.GroupTypePrivate, CreatedBy: creator},
	} {
		if _, err := store.Create(ctx, g); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	public, err := store.ListByType(ctx, models.GroupTypePublic)
	if err != nil {
		t.Fatalf("ListByType failed: %v", err)
	}
	if len(public) != 2 {
		t.Errorf("expected 2 public groups, got %d", len(public))
	}
	for _, g := range public {
		if g.Type != models.GroupTypePublic {
			t.Errorf("group %q has type %q", g.Title, g.Type)
		}
	}
}

func TestListByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := New(db)

	creator := primitive.NewObjectID()
	g1, err := store.Create(ctx, models.Group{Title: "First", Type: models.GroupTypePrivate, CreatedBy: creator})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	g2, err := store.Create(ctx, models.Group{Title: "Second", Type: models.GroupTypePublic, CreatedBy: creator})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("empty input", func(t *testing.T) {
		got, err := store.ListByIDs(ctx, nil)
		if err != nil {
			t.Fatalf("ListByIDs failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no groups, got %d", len(got))
		}
	})

	t.Run("missing ids skipped", func(t *testing.T) {
		got, err := store.ListByIDs(ctx, []primitive.ObjectID{g1.ID, primitive.NewObjectID(), g2.ID})
		if err != nil {
			t.Fatalf("ListByIDs failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 groups, got %d", len(got))
		}
	})
}
