package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mirrortwin/companion/internal/event"
	"github.com/mirrortwin/companion/pkg/utils"
)

// Handler forwards bus events for one chat over Server-Sent Events. Each
// event goes out as a named SSE frame matching its kind; a heartbeat keeps
// idle connections alive.
type Handler struct {
	bus               *event.Bus
	heartbeatInterval time.Duration
}

func New(bus *event.Bus) *Handler {
	return &Handler{
		bus:               bus,
		heartbeatInterval: 15 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{chatID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	feed, err := h.bus.SubscribeChat(ctx, chatID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "subscription failed")
		return
	}
	defer feed.Close()

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "status", map[string]string{"chatId": chatID, "state": "connected"})

	log.Debug().Str("chat_id", chatID).Msg("sse stream opened")
	defer log.Debug().Str("chat_id", chatID).Msg("sse stream closed")

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			})
		case ev, ok := <-feed.C():
			if !ok {
				return
			}
			utils.SendSSEEvent(w, flusher, string(ev.Kind), ev)
		}
	}
}
