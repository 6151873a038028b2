package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mirrortwin/companion/internal/event"
	chatmodel "github.com/mirrortwin/companion/internal/model/chat"
	chatservice "github.com/mirrortwin/companion/internal/service/chat"
	"github.com/mirrortwin/companion/internal/session"
)

type echoResponder struct{}

func (echoResponder) Respond(_ context.Context, _ string, history []chatmodel.Message, _ chatmodel.SendOptions, hooks chatmodel.ResponderHooks) (*chatmodel.AssistantReply, error) {
	last := history[len(history)-1]
	content := "echo: " + *last.Text
	if hooks.OnDelta != nil {
		hooks.OnDelta(chatmodel.StreamDelta{ContentDelta: content})
	}
	return &chatmodel.AssistantReply{Content: content}, nil
}

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	chatSvc := chatservice.NewService(chatservice.NewMemoryStore(), bus, echoResponder{}, nil)
	sessions := session.NewManager(context.Background(), bus, chatSvc, chatSvc.Transcript)
	t.Cleanup(sessions.Close)

	r := chi.NewRouter()
	New(chatSvc, sessions).RegisterRoutes(r)
	return r, chatSvc
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateChat(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postJSON(t, r, "/chats", map[string]string{"name": "daily journal"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created chatmodel.Chat
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.Name != "daily journal" {
		t.Fatalf("unexpected chat: %+v", created)
	}
	if created.Category != chatmodel.CategoryText {
		t.Fatalf("expected default text category, got %q", created.Category)
	}
}

func TestCreateChatRequiresName(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postJSON(t, r, "/chats", map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendMessageAndTranscript(t *testing.T) {
	r, chatSvc := setupRouter(t)

	c, err := chatSvc.CreateChat(context.Background(), "test", chatmodel.CategoryText)
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}

	resp := postJSON(t, r, "/chats/"+c.ID+"/messages", map[string]any{"text": "hello"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var reply chatmodel.Message
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Role != chatmodel.RoleAssistant || *reply.Text != "echo: hello" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	req := httptest.NewRequest(http.MethodGet, "/chats/"+c.ID+"/messages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var msgs []chatmodel.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestSendMessageUnknownChat(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postJSON(t, r, "/chats/missing/messages", map[string]any{"text": "hello"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSendMessageEmptyText(t *testing.T) {
	r, chatSvc := setupRouter(t)

	c, err := chatSvc.CreateChat(context.Background(), "test", chatmodel.CategoryText)
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}

	resp := postJSON(t, r, "/chats/"+c.ID+"/messages", map[string]any{"text": ""})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSnapshotLoadsTranscript(t *testing.T) {
	r, chatSvc := setupRouter(t)
	ctx := context.Background()

	c, err := chatSvc.CreateChat(ctx, "test", chatmodel.CategoryText)
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}
	if _, err := chatSvc.SendMessage(ctx, c.ID, "hello", chatmodel.SendOptions{}); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/chats/"+c.ID+"/snapshot", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var snap session.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ChatID != c.ID {
		t.Fatalf("snapshot chat id = %q", snap.ChatID)
	}
	if len(snap.Messages) != 2 {
		t.Fatalf("expected 2 messages in snapshot, got %d", len(snap.Messages))
	}
	if snap.Waiting {
		t.Fatal("snapshot should not be waiting")
	}
}

func TestSnapshotUnknownChat(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/chats/missing/snapshot", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
