package chat

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/mirrortwin/companion/internal/model/chat"
	chatservice "github.com/mirrortwin/companion/internal/service/chat"
	"github.com/mirrortwin/companion/internal/session"
	"github.com/mirrortwin/companion/pkg/utils"
)

// Handler serves the chat REST surface.
type Handler struct {
	chatSvc  *chatservice.Service
	sessions *session.Manager
}

func New(chatSvc *chatservice.Service, sessions *session.Manager) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		sessions: sessions,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chats", h.handleCreateChat)
	r.Get("/chats", h.handleListChats)
	r.Route("/chats/{chatID}", func(r chi.Router) {
		r.Get("/messages", h.handleGetMessages)
		r.Post("/messages", h.handleSendMessage)
		r.Get("/snapshot", h.handleSnapshot)
	})
}

func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	c, err := h.chatSvc.CreateChat(r.Context(), payload.Name, chat.Category(payload.Category))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatSvc.ListChats(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, chats)
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	msgs, err := h.chatSvc.Transcript(r.Context(), chatID)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, msgs)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var payload struct {
		Text      string `json:"text"`
		Reasoning bool   `json:"reasoning"`
		Voice     bool   `json:"voice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := chat.SendOptions{Reasoning: payload.Reasoning, Voice: payload.Voice}
	reply, err := h.chatSvc.SendMessage(r.Context(), chatID, payload.Text, opts)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

// handleSnapshot exposes the server-side reconciled view of a chat:
// messages, pending state, and tool call lists.
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	// Reject unknown chats before opening a session for them.
	if _, err := h.chatSvc.Transcript(r.Context(), chatID); err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}

	sess, err := h.sessions.Get(r.Context(), chatID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, sess.Snapshot())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chatservice.ErrChatNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatservice.ErrMessageRequired):
		return http.StatusBadRequest
	case errors.Is(err, chatservice.ErrResponderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
