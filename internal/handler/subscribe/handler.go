package subscribe

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mirrortwin/companion/internal/event"
)

// Handler forwards bus events for one chat over a websocket. The desktop
// shell keeps one subscription per open chat window.
type Handler struct {
	bus      *event.Bus
	upgrader websocket.Upgrader
}

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

func New(bus *event.Bus) *Handler {
	return &Handler{
		bus: bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local desktop app; the renderer origin varies by build.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/subscribe/{chatID}", h.handleSubscribe)
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	feed, err := h.bus.SubscribeChat(ctx, chatID)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("subscription failed")
		return
	}
	defer feed.Close()

	log.Debug().Str("chat_id", chatID).Msg("websocket subscription opened")
	defer log.Debug().Str("chat_id", chatID).Msg("websocket subscription closed")

	// Drain reads so close frames and pongs are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-feed.C():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("chat_id", chatID).Msg("websocket write failed")
				return
			}
		}
	}
}
