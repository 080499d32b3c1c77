package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avoronov/converse/internal/config"
	"github.com/avoronov/converse/internal/db"
	"github.com/avoronov/converse/internal/events"
	"github.com/avoronov/converse/internal/files"
	"github.com/avoronov/converse/internal/llm"
	"github.com/avoronov/converse/internal/message"
	"github.com/avoronov/converse/internal/pubsub"
	"github.com/avoronov/converse/internal/server"
	"github.com/avoronov/converse/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the converse API server. Configuration comes from the
environment:

  CONVERSE_ADDR        listen address (default :5000)
  CONVERSE_DB_PATH     SQLite database path
  CONVERSE_UPLOAD_DIR  upload storage directory
  GEMINI_API_KEY       Gemini credentials
  OPENROUTER_API_KEY   OpenRouter credentials
  EXA_API_KEY          Exa search credentials`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	storage, err := files.NewStorage(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("creating upload storage: %w", err)
	}

	registry := llm.NewRegistry(llm.RegistryConfig{
		GeminiKey:     cfg.GeminiKey,
		OpenRouterKey: cfg.OpenRouterKey,
		ExaKey:        cfg.ExaKey,
		Custom:        loadCustomClients(logger),
	})

	sessionBroker := pubsub.NewBroker[events.SessionEvent]("sessions")
	defer sessionBroker.Shutdown()
	fileBroker := pubsub.NewBroker[events.FileEvent]("files")
	defer fileBroker.Shutdown()

	fileSvc := files.NewService(files.NewSQLiteStore(database), storage, fileBroker, logger)
	srv := server.New(
		session.NewService(session.NewSQLiteStore(database), sessionBroker),
		message.NewService(message.NewSQLiteStore(database)),
		fileSvc,
		registry,
		logger,
	)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "db", cfg.DBPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		fileSvc.Wait()
	}
	return nil
}

// loadCustomClients builds clients for user-defined providers stored in the
// data directory.
func loadCustomClients(logger *slog.Logger) []*llm.CompatClient {
	manager := config.NewCustomProviderManager("")
	providers, err := manager.Load()
	if err != nil {
		logger.Warn("failed to load custom providers", "error", err)
		return nil
	}

	clients := make([]*llm.CompatClient, 0, len(providers))
	for i := range providers {
		p := &providers[i]
		clients = append(clients, llm.NewCompatClient(p.Name, p.BaseURL, p.APIKey, p.DefaultHeaders, p.Models))
		logger.Info("custom provider loaded", "name", p.Name, "models", len(p.Models))
	}
	return clients
}
