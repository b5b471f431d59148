package messagestore

import (
	"testing"
	"time"

	"github.com/driftware/drift/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAppend(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := New(db)

	userID := primitive.NewObjectID()
	groupID := primitive.NewObjectID()

	msg, err := store.Append(ctx, userID, groupID, "hello there")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if msg.ID.IsZero() {
		t.Error("Append should assign an id")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("Append should set the timestamp")
	}
	if msg.Content != "hello there" || msg.UserID != userID || msg.GroupID != groupID {
		t.Errorf("Append returned wrong message: %+v", msg)
	}
}

func TestPage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fixtures := testutil.NewFixtures(t, db)
	store := New(db)

	userID := primitive.NewObjectID()
	groupID := primitive.NewObjectID()
	otherGroup := primitive.NewObjectID()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		fixtures.CreateMessage(ctx, userID, groupID, "msg", base.Add(time.Duration(i)*time.Minute))
	}
	fixtures.CreateMessage(ctx, userID, otherGroup, "elsewhere", base)

	t.Run("newest first", func(t *testing.T) {
		msgs, err := store.Page(ctx, groupID, 0, 0)
		if err != nil {
			t.Fatalf("Page failed: %v", err)
		}
		if len(msgs) != 5 {
			t.Fatalf("expected 5 messages, got %d", len(msgs))
		}
		for i := 1; i < len(msgs); i++ {
			if msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
				t.Errorf("messages not sorted newest first at index %d", i)
			}
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		first, err := store.Page(ctx, groupID, 2, 0)
		if err != nil {
			t.Fatalf("Page failed: %v", err)
		}
		if len(first) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(first))
		}

		second, err := store.Page(ctx, groupID, 2, 2)
		if err != nil {
			t.Fatalf("Page failed: %v", err)
		}
		if len(second) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(second))
		}
		if second[0].ID == first[0].ID || second[0].ID == first[1].ID {
			t.Error("offset page should not repeat earlier messages")
		}
	})

	t.Run("scoped to group", func(t *testing.T) {
		msgs, err := store.Page(ctx, otherGroup, 0, 0)
		if err != nil {
			t.Fatalf("Page failed: %v", err)
		}
		if len(msgs) != 1 {
			t.Errorf("expected 1 message in other group, got %d", len(msgs))
		}
	})

	t.Run("negative offset treated as zero", func(t *testing.T) {
		msgs, err := store.Page(ctx, groupID, 0, -10)
		if err != nil {
			t.Fatalf("Page failed: %v", err)
		}
		if len(msgs) != 5 {
			t.Errorf("expected 5 messages, got %d", len(msgs))
		}
	})
}
