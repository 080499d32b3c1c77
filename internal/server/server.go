package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/avoronov/converse/internal/files"
	"github.com/avoronov/converse/internal/llm"
	"github.com/avoronov/converse/internal/message"
	"github.com/avoronov/converse/internal/session"
)

// Providers routes models to provider clients. Implemented by llm.Registry.
type Providers interface {
	For(model string) (llm.Client, string, error)
	ClientTypeFor(model string) string
	Search(ctx context.Context, query string) (string, error)
}

// Server is the HTTP API server.
type Server struct {
	sessions  *session.Service
	messages  *message.Service
	files     *files.Service
	providers Providers
	logger    *slog.Logger
}

// New creates a server.
func New(sessions *session.Service, messages *message.Service, fileSvc *files.Service, providers Providers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sessions:  sessions,
		messages:  messages,
		files:     fileSvc,
		providers: providers,
		logger:    logger,
	}
}

// Handler returns the routed handler with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/history", s.handleSessionHistory)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/close", s.handleCloseSession)
	mux.HandleFunc("POST /api/sessions/{id}/reopen", s.handleReopenSession)
	mux.HandleFunc("POST /api/sessions/{id}/clear", s.handleClearSession)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleSendMessage)

	mux.HandleFunc("DELETE /api/messages/{id}", s.handleDeleteMessage)

	mux.HandleFunc("POST /api/files/upload", s.handleUploadFile)
	mux.HandleFunc("GET /api/files", s.handleListFiles)
	mux.HandleFunc("GET /api/files/{id}/status", s.handleFileStatus)
	mux.HandleFunc("DELETE /api/files/{id}", s.handleDeleteFile)

	return withLogging(s.logger, withRecover(s.logger, mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON writes a JSON response body.
func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// respondError writes the error contract used by every endpoint.
func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

// notFoundOr500 maps store lookups to 404 or 500.
func (s *Server) notFoundOr500(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, message.ErrNotFound) || errors.Is(err, files.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	s.logger.Error("request failed", "error", err)
	s.respondError(w, http.StatusInternalServerError, err.Error())
}
