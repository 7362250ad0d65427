package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-sessions/config"
	"chat-sessions/handlers"
	"chat-sessions/pubsub"
	"chat-sessions/repository"
	"chat-sessions/services"
	"chat-sessions/ws"

	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

type stores struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	messages repository.MessageRepository
	close    func() error
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.DBDriver == config.DriverMemory {
		messages := repository.NewInMemoryMessageRepo()
		return stores{
			users:    repository.NewInMemoryUserRepo(),
			sessions: repository.NewInMemorySessionRepo(messages),
			messages: messages,
			close:    func() error { return nil },
		}, nil
	}

	store, err := repository.OpenSQL(ctx, cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return stores{}, fmt.Errorf("database opening failed: %w", err)
	}
	return stores{
		users:    store.Users(),
		sessions: store.Sessions(),
		messages: store.Messages(),
		close:    store.Close,
	}, nil
}

func openBus(ctx context.Context, cfg config.Config, log *slog.Logger) (pubsub.Bus, error) {
	if cfg.BusDriver == config.BusRedis {
		return pubsub.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisChannelPrefix, cfg.SubscriberBuffer, log)
	}
	return pubsub.NewMemoryBus(cfg.SubscriberBuffer), nil
}

// run wires every component and blocks until a signal or a server error.
func run() error {
	// --- config/env ---
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- store ---
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing store...", "driver", cfg.DBDriver)
		_ = st.close()
	}()

	// --- bus ---
	bus, err := openBus(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("bus opening failed: %w", err)
	}
	defer bus.Close()

	// --- services ---
	authSvc := services.NewAuthService(st.users, log, &cfg)
	chatSvc := services.NewChatService(st.users, st.sessions, st.messages, bus, log, &cfg)

	// --- websocket hub ---
	hub := ws.NewHub(bus, chatSvc, log)
	chatSvc.SetPresence(hub)

	// --- handlers ---
	authH := handlers.NewAuthHandler(authSvc)
	chatH := handlers.NewChatHandler(hub, chatSvc, authSvc, log)
	msgH := handlers.NewMessageHandler(chatSvc)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.NewRouter(log, authSvc, authH, chatH, msgH),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Chat server running", "port", cfg.Port, "db_driver", cfg.DBDriver, "bus_driver", cfg.BusDriver)
		log.Info("WS endpoint", "url", fmt.Sprintf("ws://localhost:%s/ws?token=<token>", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-errChan:
		return err
	}

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
	return nil
}
