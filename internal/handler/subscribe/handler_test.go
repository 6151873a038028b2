package subscribe

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mirrortwin/companion/internal/event"
	"github.com/mirrortwin/companion/internal/model/chat"
	"github.com/mirrortwin/companion/pkg/utils"
)

func TestSubscribeForwardsBusEvents(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	r := chi.NewRouter()
	New(bus).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/subscribe/c1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	// The subscription opens as part of the upgrade handling; give the
	// handler a beat before publishing.
	time.Sleep(100 * time.Millisecond)

	if err := bus.PublishToolCall("c1", chat.ToolCall{ID: "t1", MessageID: "m1", Name: "generate_image"}); err != nil {
		t.Fatalf("PublishToolCall err: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev event.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON err: %v", err)
	}

	if ev.Kind != event.KindToolCall {
		t.Fatalf("event kind = %q", ev.Kind)
	}
	if ev.ToolCall == nil || ev.ToolCall.ID != "t1" {
		t.Fatalf("unexpected tool call event: %+v", ev)
	}
}

func TestSubscribeIgnoresOtherChats(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	r := chi.NewRouter()
	New(bus).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/subscribe/c1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	if err := bus.PublishMessage("c2", chat.Message{ID: "other"}); err != nil {
		t.Fatalf("PublishMessage err: %v", err)
	}
	if err := bus.PublishMessage("c1", chat.Message{ID: "mine", Role: chat.RoleUser, Text: utils.Ptr("hi")}); err != nil {
		t.Fatalf("PublishMessage err: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev event.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON err: %v", err)
	}
	if ev.Message == nil || ev.Message.ID != "mine" {
		t.Fatalf("leaked event from another chat: %+v", ev)
	}
}
