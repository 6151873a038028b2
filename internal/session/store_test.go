package session_test

import (
	"testing"

	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/internal/session"
	"github.com/mirrortwin/companion/pkg/utils"
)

func TestStoreUpsertKeepsOneTurnPerID(t *testing.T) {
	store := session.NewStore()

	store.Upsert(chat.Message{ID: "a", Text: utils.Ptr("one")})
	store.Upsert(chat.Message{ID: "b", Text: utils.Ptr("two")})
	store.Upsert(chat.Message{ID: "a", Text: utils.Ptr("one again")})
	store.Upsert(chat.Message{ID: "a", Text: utils.Ptr("one more")})

	if store.Len() != 2 {
		t.Fatalf("expected 2 turns, got %d", store.Len())
	}

	got, ok := store.Get("a")
	if !ok {
		t.Fatal("turn a missing")
	}
	if *got.Text != "one more" {
		t.Fatalf("expected replacement, got %q", *got.Text)
	}
}

func TestStoreUpsertPreservesPositionOnReplace(t *testing.T) {
	store := session.NewStore()

	store.Upsert(chat.Message{ID: "a"})
	store.Upsert(chat.Message{ID: "b"})
	store.Upsert(chat.Message{ID: "c"})
	store.Upsert(chat.Message{ID: "b", Text: utils.Ptr("replaced")})

	msgs := store.Messages()
	wantOrder := []string{"a", "b", "c"}
	for i, want := range wantOrder {
		if msgs[i].ID != want {
			t.Fatalf("position %d: got %s want %s", i, msgs[i].ID, want)
		}
	}
	if msgs[1].Text == nil || *msgs[1].Text != "replaced" {
		t.Fatal("replacement did not apply")
	}
}
