package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/avoronov/converse/internal/api"
	"github.com/avoronov/converse/internal/files"
	"github.com/avoronov/converse/internal/llm"
	"github.com/avoronov/converse/internal/message"
	"github.com/avoronov/converse/internal/session"
)

// apologyReply substitutes for an empty provider response so the assistant
// message is never blank.
const apologyReply = "I apologize, but I was unable to generate a response. Please try again."

// handleSendMessage is the write path: it ensures the session exists,
// generates the assistant reply, and persists both messages. The session in
// the URL may have never been created; it is materialized here with the
// model and temperature carried on the request.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctx := r.Context()

	var req api.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Message)
	if text == "" && !req.SearchMode {
		s.respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	model := req.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	sess, created, err := s.sessions.EnsureExists(ctx, session.CreateParams{
		ID:          sessionID,
		Model:       model,
		ClientType:  s.providers.ClientTypeFor(model),
		Temperature: req.Temperature,
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if created {
		s.logger.Info("session auto-created", "session_id", sess.ID, "model", sess.Model)
	}
	if sess.IsClosed {
		s.respondError(w, http.StatusConflict, "session is closed")
		return
	}

	history, err := s.messages.History(ctx, sess.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reply, err := s.generate(r, sess, text, req)
	if err != nil {
		s.logger.Error("generation failed", "session_id", sess.ID, "error", err)
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if strings.TrimSpace(reply) == "" {
		reply = apologyReply
	}

	userMsg, err := s.messages.Append(ctx, sess.ID, message.RoleUser, req.Message, req.Files)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	assistantMsg, err := s.messages.Append(ctx, sess.ID, message.RoleAssistant, reply, nil)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(history) == 0 {
		if _, err := s.sessions.AutoTitle(ctx, sess, req.Message); err != nil {
			s.logger.Warn("auto-title failed", "session_id", sess.ID, "error", err)
		}
	}
	if err := s.sessions.Touch(ctx, sess.ID); err != nil {
		s.logger.Warn("touch failed", "session_id", sess.ID, "error", err)
	}

	sess, err = s.sessions.Get(ctx, sess.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, api.SendResult{
		UserMessage:      toAPIMessage(userMsg),
		AssistantMessage: toAPIMessage(assistantMsg),
		Session:          toAPISession(sess),
	})
}

// generate produces the assistant reply for the request, routing search-mode
// messages to the search provider and everything else to the session's chat
// provider.
func (s *Server) generate(r *http.Request, sess *session.Session, text string, req api.SendRequest) (string, error) {
	ctx := r.Context()

	if req.SearchMode {
		return s.providers.Search(ctx, text)
	}

	client, _, err := s.providers.For(sess.Model)
	if err != nil {
		return "", err
	}

	history, err := s.messages.History(ctx, sess.ID)
	if err != nil {
		return "", err
	}
	turns := make([]llm.Turn, len(history))
	for i, m := range history {
		turns[i] = llm.Turn{Role: m.Role, Content: m.Content}
	}

	attachments, err := s.usableAttachments(r, req.Files)
	if err != nil {
		return "", err
	}

	return client.Generate(ctx, llm.GenerateRequest{
		Model:       sess.Model,
		Temperature: sess.Temperature,
		History:     turns,
		Message:     text,
		Attachments: attachments,
	})
}

// usableAttachments resolves file references to disk paths, skipping files
// whose processing has not completed. The references stay on the stored
// message either way.
func (s *Server) usableAttachments(r *http.Request, fileIDs []string) ([]llm.Attachment, error) {
	var out []llm.Attachment
	for _, id := range fileIDs {
		f, err := s.files.Status(r.Context(), id)
		if err != nil {
			if errors.Is(err, files.ErrNotFound) {
				s.logger.Warn("message references unknown file", "file_id", id)
				continue
			}
			return nil, err
		}
		if f.Status != files.StatusReady || f.ProcessingStatus != files.ProcessingCompleted {
			s.logger.Warn("skipping unprocessed file", "file_id", id, "processing_status", f.ProcessingStatus)
			continue
		}
		out = append(out, llm.Attachment{Path: f.Path, MimeType: f.MimeType})
	}
	return out, nil
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	// Slack over the content limit covers multipart framing so the storage
	// layer reports the size error instead of a bare body-too-large failure.
	r.Body = http.MaxBytesReader(w, r.Body, files.MaxUploadSize+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	f, err := s.files.Upload(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, files.ErrTooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, api.UploadResult{
		ID:               f.ID,
		OriginalFilename: f.OriginalFilename,
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.files.List(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]api.FileStatus, len(uploads))
	for i, f := range uploads {
		out[i] = api.FileStatus{
			ID:               f.ID,
			Status:           f.Status,
			ProcessingStatus: f.ProcessingStatus,
			OriginalFilename: f.OriginalFilename,
		}
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.files.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.notFoundOr500(w, err, "file not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleFileStatus(w http.ResponseWriter, r *http.Request) {
	f, err := s.files.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.notFoundOr500(w, err, "file not found")
		return
	}

	s.respondJSON(w, http.StatusOK, api.FileStatus{
		ID:               f.ID,
		Status:           f.Status,
		ProcessingStatus: f.ProcessingStatus,
		OriginalFilename: f.OriginalFilename,
	})
}
