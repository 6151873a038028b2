package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mirrortwin/companion/internal/event"
	chathandler "github.com/mirrortwin/companion/internal/handler/chat"
	"github.com/mirrortwin/companion/internal/handler/stream"
	"github.com/mirrortwin/companion/internal/handler/subscribe"
	middlewarePkg "github.com/mirrortwin/companion/internal/middleware"
	chatservice "github.com/mirrortwin/companion/internal/service/chat"
	"github.com/mirrortwin/companion/internal/session"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatservice.Service, bus *event.Bus, sessions *session.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chathandler.New(chatSvc, sessions)
	streamHandler := stream.New(bus)
	subscribeHandler := subscribe.New(bus)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		subscribeHandler.RegisterRoutes(api)
	})

	return r
}
