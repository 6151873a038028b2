package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/mirrortwin/companion/internal/event"
	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/internal/session"
	"github.com/mirrortwin/companion/pkg/utils"
)

type nopSender struct{}

func (nopSender) SendMessage(context.Context, string, string, chat.SendOptions) (*chat.Message, error) {
	return nil, nil
}

func TestManagerReusesSessions(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	m := session.NewManager(context.Background(), bus, nopSender{}, nil)
	defer m.Close()

	a, err := m.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	b, err := m.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if a != b {
		t.Fatal("expected the same session instance")
	}
}

func TestManagerLoadsTranscriptOnFirstAccess(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	loader := func(_ context.Context, chatID string) ([]chat.Message, error) {
		return []chat.Message{
			{ID: "m1", ChatID: chatID, Role: chat.RoleUser, Text: utils.Ptr("hi")},
		}, nil
	}

	m := session.NewManager(context.Background(), bus, nopSender{}, loader)
	defer m.Close()

	sess, err := m.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}

	snap := sess.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].ID != "m1" {
		t.Fatalf("transcript not loaded: %+v", snap.Messages)
	}
}

func TestManagerKeepsEventsPublishedDuringLoad(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	loader := func(_ context.Context, chatID string) ([]chat.Message, error) {
		if err := bus.PublishMessage(chatID, chat.Message{
			ID: "m1", ChatID: chatID, Role: chat.RoleAssistant, Text: utils.Ptr("landed mid-load"),
		}); err != nil {
			return nil, err
		}
		return nil, nil
	}

	m := session.NewManager(context.Background(), bus, nopSender{}, loader)
	defer m.Close()

	sess, err := m.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := sess.Snapshot()
		if len(snap.Messages) == 1 {
			if snap.Messages[0].ID != "m1" {
				t.Fatalf("unexpected turn: %+v", snap.Messages[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("event published during load was lost")
}

func TestManagerAppliesBusEvents(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	m := session.NewManager(context.Background(), bus, nopSender{}, nil)
	defer m.Close()

	sess, err := m.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}

	if err := bus.PublishStream("c1", chat.StreamPayload{
		MessageID:          "m1",
		Role:               chat.RoleAssistant,
		AccumulatedMessage: "Hello",
		IsComplete:         true,
	}); err != nil {
		t.Fatalf("PublishStream err: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := sess.Snapshot()
		if len(snap.Messages) == 1 {
			if got := *snap.Messages[0].Text; got != "Hello" {
				t.Fatalf("text = %q", got)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the event to apply")
}
