package server

import (
	"encoding/json"
	"net/http"

	"github.com/avoronov/converse/internal/api"
	"github.com/avoronov/converse/internal/message"
	"github.com/avoronov/converse/internal/session"
)

// The wire shapes live in the api package so the server and its clients
// share one contract.

func toAPISession(s *session.Session) api.Session {
	return api.Session{
		ID:           s.ID,
		Title:        s.Title,
		Model:        s.Model,
		ClientType:   s.ClientType,
		Temperature:  s.Temperature,
		MessageCount: s.MessageCount,
		IsClosed:     s.IsClosed,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toAPIMessage(m *message.Message) api.Message {
	return api.Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Content:   m.Content,
		Files:     m.Files,
		Timestamp: m.CreatedAt,
	}
}

func toAPISessions(sessions []*session.Session) []api.Session {
	out := make([]api.Session, len(sessions))
	for i, s := range sessions {
		out[i] = toAPISession(s)
	}
	return out
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	temperature := 1.0
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	model := req.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	sess, err := s.sessions.Create(r.Context(), session.CreateParams{
		Title:       req.Title,
		Model:       model,
		ClientType:  s.providers.ClientTypeFor(model),
		Temperature: temperature,
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, toAPISession(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, toAPISessions(sessions))
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListAll(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, toAPISessions(sessions))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.notFoundOr500(w, err, "session not found")
		return
	}

	msgs, err := s.messages.History(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	apiMsgs := make([]api.Message, len(msgs))
	for i, m := range msgs {
		apiMsgs[i] = toAPIMessage(m)
	}

	s.respondJSON(w, http.StatusOK, api.SessionDetail{
		Session:  toAPISession(sess),
		Messages: apiMsgs,
	})
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch api.SessionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.sessions.Update(r.Context(), id, session.Patch{
		Title:       patch.Title,
		Model:       patch.Model,
		Temperature: patch.Temperature,
	})
	if err != nil {
		s.notFoundOr500(w, err, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, toAPISession(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.notFoundOr500(w, err, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.Context(), r.PathValue("id")); err != nil {
		s.notFoundOr500(w, err, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleReopenSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Reopen(r.Context(), id); err != nil {
		s.notFoundOr500(w, err, "session not found")
		return
	}

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, toAPISession(sess))
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.notFoundOr500(w, err, "session not found")
		return
	}
	if err := s.messages.Clear(r.Context(), id); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	// Deletes converge: removing an already-removed message succeeds so
	// client rollback retries are safe.
	if err := s.messages.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
