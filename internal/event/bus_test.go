package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/mirrortwin/companion/internal/event"
	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/pkg/utils"
)

func TestFeedDeliversAllThreeEventKinds(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	feed, err := bus.SubscribeChat(ctx, "c1")
	if err != nil {
		t.Fatalf("SubscribeChat err: %v", err)
	}
	defer feed.Close()

	if err := bus.PublishMessage("c1", chat.Message{ID: "m1", Role: chat.RoleUser, Text: utils.Ptr("hi")}); err != nil {
		t.Fatalf("PublishMessage err: %v", err)
	}
	if err := bus.PublishStream("c1", chat.StreamPayload{MessageID: "m2", Role: chat.RoleAssistant, AccumulatedMessage: "h"}); err != nil {
		t.Fatalf("PublishStream err: %v", err)
	}
	if err := bus.PublishToolCall("c1", chat.ToolCall{ID: "t1", MessageID: "m2", Name: "search_web"}); err != nil {
		t.Fatalf("PublishToolCall err: %v", err)
	}

	got := make(map[event.Kind]int)
	for i := 0; i < 3; i++ {
		select {
		case ev := <-feed.C():
			got[ev.Kind]++
			switch ev.Kind {
			case event.KindMessage:
				if ev.Message == nil || ev.Message.ID != "m1" {
					t.Fatalf("bad message event: %+v", ev)
				}
			case event.KindStream:
				if ev.Stream == nil || ev.Stream.MessageID != "m2" {
					t.Fatalf("bad stream event: %+v", ev)
				}
			case event.KindToolCall:
				if ev.ToolCall == nil || ev.ToolCall.ID != "t1" {
					t.Fatalf("bad tool call event: %+v", ev)
				}
			}
		case <-ctx.Done():
			t.Fatalf("timed out after %d events", i)
		}
	}

	for _, kind := range []event.Kind{event.KindMessage, event.KindStream, event.KindToolCall} {
		if got[kind] != 1 {
			t.Fatalf("expected one %s event, got %d", kind, got[kind])
		}
	}
}

func TestFeedPreservesPublishOrder(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	feed, err := bus.SubscribeChat(ctx, "c1")
	if err != nil {
		t.Fatalf("SubscribeChat err: %v", err)
	}
	defer feed.Close()

	ids := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, id := range ids {
		if err := bus.PublishMessage("c1", chat.Message{ID: id, Role: chat.RoleUser, Text: utils.Ptr(id)}); err != nil {
			t.Fatalf("PublishMessage(%s) err: %v", id, err)
		}
	}

	for i, want := range ids {
		select {
		case ev := <-feed.C():
			if ev.Message == nil || ev.Message.ID != want {
				t.Fatalf("event %d out of order: want %s, got %+v", i, want, ev)
			}
		case <-ctx.Done():
			t.Fatalf("timed out after %d events", i)
		}
	}
}

func TestFeedIsolatesChats(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	feed, err := bus.SubscribeChat(ctx, "c1")
	if err != nil {
		t.Fatalf("SubscribeChat err: %v", err)
	}
	defer feed.Close()

	if err := bus.PublishMessage("c2", chat.Message{ID: "other"}); err != nil {
		t.Fatalf("PublishMessage err: %v", err)
	}
	if err := bus.PublishMessage("c1", chat.Message{ID: "mine"}); err != nil {
		t.Fatalf("PublishMessage err: %v", err)
	}

	select {
	case ev := <-feed.C():
		if ev.Message == nil || ev.Message.ID != "mine" {
			t.Fatalf("leaked event from another chat: %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestFeedCloseEndsChannel(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	feed, err := bus.SubscribeChat(context.Background(), "c1")
	if err != nil {
		t.Fatalf("SubscribeChat err: %v", err)
	}

	feed.Close()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-feed.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("feed channel did not close")
		}
	}
}
