package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mirrortwin/companion/internal/anonymizer"
	"github.com/mirrortwin/companion/internal/config"
	"github.com/mirrortwin/companion/internal/event"
	"github.com/mirrortwin/companion/internal/handler"
	"github.com/mirrortwin/companion/internal/model/tool"
	"github.com/mirrortwin/companion/internal/service/ai"
	"github.com/mirrortwin/companion/internal/service/chat"
	"github.com/mirrortwin/companion/internal/session"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded, continuing with system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	storage, err := newStorage(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer storage.Close()

	bus := event.NewBus()
	defer bus.Close()

	dict := anonymizer.NewService(cfg.Privacy.Rules)

	registry := tool.NewMapRegistry()
	registry.Register(tool.ClockTool{})

	var responder chat.Responder
	if cfg.AI.Enabled() {
		r, err := ai.NewResponder(ctx, cfg.AI, registry)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize responder, continuing without AI")
		} else {
			responder = r
			log.Info().Str("model", cfg.AI.Model).Msg("responder initialized")
		}
	} else {
		log.Info().Msg("ark credentials not configured, sends will be rejected")
	}

	chatSvc := chat.NewService(storage, bus, responder, dict)
	sessions := session.NewManager(ctx, bus, chatSvc, chatSvc.Transcript)
	defer sessions.Close()

	router := handler.NewRouter(chatSvc, bus, sessions)

	startServer(ctx, cfg.Server, router)
}

func newStorage(cfg config.StorageConfig) (chat.Storage, error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		log.Info().Str("dsn", cfg.DSN).Msg("using sqlite storage")
		return chat.NewSQLiteStore(cfg.DSN)
	default:
		log.Info().Msg("using in-memory storage")
		return chat.NewMemoryStore(), nil
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("companion backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
