package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avoronov/converse/internal/api"
	"github.com/avoronov/converse/internal/db"
	"github.com/avoronov/converse/internal/files"
	"github.com/avoronov/converse/internal/llm"
	"github.com/avoronov/converse/internal/message"
	"github.com/avoronov/converse/internal/session"
)

type fakeClient struct {
	reply string
	err   error
	last  llm.GenerateRequest
}

func (f *fakeClient) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	f.last = req
	return f.reply, f.err
}

type fakeProviders struct {
	client       *fakeClient
	forErr       error
	searchReply  string
	searchErr    error
	searchedWith string
}

func (f *fakeProviders) For(_ string) (llm.Client, string, error) {
	if f.forErr != nil {
		return nil, llm.ClientGemini, f.forErr
	}
	return f.client, llm.ClientGemini, nil
}

func (f *fakeProviders) ClientTypeFor(_ string) string { return llm.ClientGemini }

func (f *fakeProviders) Search(_ context.Context, query string) (string, error) {
	f.searchedWith = query
	return f.searchReply, f.searchErr
}

type testEnv struct {
	server    *httptest.Server
	providers *fakeProviders
	fileSvc   *files.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	storage, err := files.NewStorage(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	providers := &fakeProviders{client: &fakeClient{reply: "Hi there!"}}
	fileSvc := files.NewService(files.NewSQLiteStore(database), storage, nil, logger)

	srv := New(
		session.NewService(session.NewSQLiteStore(database), nil),
		message.NewService(message.NewSQLiteStore(database)),
		fileSvc,
		providers,
		logger,
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, providers: providers, fileSvc: fileSvc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, raw
}

func TestSendMessageAutoCreatesSession(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodPost, "/api/sessions/sess-new/messages", api.SendRequest{
		Message:     "please summarize this repository for me",
		Model:       "gemini-2.5-flash",
		Temperature: 0.8,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var result api.SendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatal(err)
	}
	if result.UserMessage.ID == "" || result.AssistantMessage.ID == "" {
		t.Error("expected both persisted messages in response")
	}
	if result.AssistantMessage.Content != "Hi there!" {
		t.Errorf("assistant content = %q", result.AssistantMessage.Content)
	}
	if result.Session.ID != "sess-new" {
		t.Errorf("session ID = %q, want the ID from the URL", result.Session.ID)
	}
	if result.Session.Title != "please summarize this repository for..." {
		t.Errorf("auto-title = %q", result.Session.Title)
	}
	if result.Session.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", result.Session.MessageCount)
	}
	if result.Session.Temperature != 0.8 {
		t.Errorf("temperature = %v, want the request value", result.Session.Temperature)
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}
	if !strings.Contains(string(raw), "error") {
		t.Errorf("expected error body, got %s", raw)
	}
}

func TestSendMessageSearchMode(t *testing.T) {
	env := newTestEnv(t)
	env.providers.searchReply = "Search results for \"golang\":\n1. go.dev"

	resp, raw := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{
		Message:    "golang",
		SearchMode: true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}
	if env.providers.searchedWith != "golang" {
		t.Errorf("searched with %q", env.providers.searchedWith)
	}

	var result api.SendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.AssistantMessage.Content, "Search results") {
		t.Errorf("assistant content = %q", result.AssistantMessage.Content)
	}
}

func TestSendMessageProviderNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.providers.forErr = fmt.Errorf("gemini client not configured")

	resp, raw := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "hi"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(raw), "not configured") {
		t.Errorf("body = %s, want a not-configured error", raw)
	}

	// The failed send must not leave partial messages behind.
	resp, raw = env.do(t, http.MethodGet, "/api/sessions/s1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session status = %d", resp.StatusCode)
	}
	var detail api.SessionDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		t.Fatal(err)
	}
	if len(detail.Messages) != 0 {
		t.Errorf("messages persisted despite failure: %d", len(detail.Messages))
	}
}

func TestSendMessageEmptyReplyGetsApology(t *testing.T) {
	env := newTestEnv(t)
	env.providers.client.reply = "   "

	resp, raw := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var result api.SendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatal(err)
	}
	if result.AssistantMessage.Content != apologyReply {
		t.Errorf("assistant content = %q, want apology fallback", result.AssistantMessage.Content)
	}
}

func TestSendMessageClosedSession(t *testing.T) {
	env := newTestEnv(t)

	if resp, _ := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "hi"}); resp.StatusCode != http.StatusOK {
		t.Fatal("send failed")
	}
	if resp, _ := env.do(t, http.MethodPost, "/api/sessions/s1/close", nil); resp.StatusCode != http.StatusOK {
		t.Fatal("close failed")
	}

	resp, raw := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "again"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}
}

func TestSendMessagePreservesHistory(t *testing.T) {
	env := newTestEnv(t)

	if resp, _ := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "first message"}); resp.StatusCode != http.StatusOK {
		t.Fatal("first send failed")
	}
	if resp, _ := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "second message"}); resp.StatusCode != http.StatusOK {
		t.Fatal("second send failed")
	}

	// The provider saw the first exchange as history.
	last := env.providers.client.last
	if len(last.History) != 2 {
		t.Fatalf("history turns = %d, want 2", len(last.History))
	}
	if last.History[0].Content != "first message" {
		t.Errorf("history[0] = %q", last.History[0].Content)
	}
	if last.Message != "second message" {
		t.Errorf("message = %q", last.Message)
	}

	// Title stays from the first message.
	_, raw := env.do(t, http.MethodGet, "/api/sessions/s1", nil)
	var detail api.SessionDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		t.Fatal(err)
	}
	if detail.Session.Title != "first message" {
		t.Errorf("title = %q", detail.Session.Title)
	}
	if len(detail.Messages) != 4 {
		t.Errorf("messages = %d, want 4", len(detail.Messages))
	}
}

func TestCreateAndListSessions(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodPost, "/api/sessions", api.CreateSessionRequest{Title: "Explicit"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var created api.Session
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.Title != "Explicit" {
		t.Errorf("created = %+v", created)
	}

	_, raw = env.do(t, http.MethodGet, "/api/sessions", nil)
	var sessions []api.Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(sessions))
	}
}

func TestUpdateSession(t *testing.T) {
	env := newTestEnv(t)

	if resp, _ := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "hi"}); resp.StatusCode != http.StatusOK {
		t.Fatal("send failed")
	}

	title := "Renamed"
	resp, raw := env.do(t, http.MethodPut, "/api/sessions/s1", api.SessionPatch{Title: &title})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var updated api.Session
	if err := json.Unmarshal(raw, &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("title = %q", updated.Title)
	}

	resp, _ = env.do(t, http.MethodPut, "/api/sessions/missing", api.SessionPatch{Title: &title})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteMessageIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	_, raw := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "hi"})
	var result api.SendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		resp, body := env.do(t, http.MethodDelete, "/api/messages/"+result.UserMessage.ID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("delete #%d status = %d, body = %s", i+1, resp.StatusCode, body)
		}
	}
}

func TestFileUploadAndStatus(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("some file content")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(env.server.URL+"/api/files/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", resp.StatusCode, raw)
	}

	var uploaded api.UploadResult
	if err := json.Unmarshal(raw, &uploaded); err != nil {
		t.Fatal(err)
	}
	if uploaded.OriginalFilename != "notes.txt" {
		t.Errorf("original filename = %q", uploaded.OriginalFilename)
	}

	env.fileSvc.Wait()

	getResp, raw := env.do(t, http.MethodGet, "/api/files/"+uploaded.ID+"/status", nil)
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint = %d", getResp.StatusCode)
	}
	var status api.FileStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "ready" || status.ProcessingStatus != "completed" {
		t.Errorf("status = %+v", status)
	}

	getResp, _ = env.do(t, http.MethodGet, "/api/files/unknown/status", nil)
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown file status = %d, want 404", getResp.StatusCode)
	}

	listResp, raw := env.do(t, http.MethodGet, "/api/files", nil)
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("list files status = %d", listResp.StatusCode)
	}
	var listed []api.FileStatus
	if err := json.Unmarshal(raw, &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != uploaded.ID {
		t.Errorf("listed files = %+v", listed)
	}

	delResp, _ := env.do(t, http.MethodDelete, "/api/files/"+uploaded.ID, nil)
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete file status = %d", delResp.StatusCode)
	}
	delResp, _ = env.do(t, http.MethodDelete, "/api/files/"+uploaded.ID, nil)
	if delResp.StatusCode != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", delResp.StatusCode)
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	if resp, _ := env.do(t, http.MethodPost, "/api/sessions/s1/messages", api.SendRequest{Message: "hi"}); resp.StatusCode != http.StatusOK {
		t.Fatal("send failed")
	}

	if resp, _ := env.do(t, http.MethodPost, "/api/sessions/s1/close", nil); resp.StatusCode != http.StatusOK {
		t.Fatal("close failed")
	}

	// Closed sessions drop out of the open listing but stay in history.
	_, raw := env.do(t, http.MethodGet, "/api/sessions", nil)
	var open []api.Session
	if err := json.Unmarshal(raw, &open); err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Errorf("open sessions = %d, want 0", len(open))
	}

	_, raw = env.do(t, http.MethodGet, "/api/sessions/history", nil)
	var all []api.Session
	if err := json.Unmarshal(raw, &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || !all[0].IsClosed {
		t.Errorf("history = %+v", all)
	}

	if resp, _ := env.do(t, http.MethodPost, "/api/sessions/s1/reopen", nil); resp.StatusCode != http.StatusOK {
		t.Fatal("reopen failed")
	}

	if resp, _ := env.do(t, http.MethodPost, "/api/sessions/s1/clear", nil); resp.StatusCode != http.StatusOK {
		t.Fatal("clear failed")
	}
	_, raw = env.do(t, http.MethodGet, "/api/sessions/s1", nil)
	var detail api.SessionDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		t.Fatal(err)
	}
	if len(detail.Messages) != 0 {
		t.Errorf("messages after clear = %d, want 0", len(detail.Messages))
	}

	if resp, _ := env.do(t, http.MethodDelete, "/api/sessions/s1", nil); resp.StatusCode != http.StatusOK {
		t.Fatal("delete failed")
	}
	if resp, _ := env.do(t, http.MethodGet, "/api/sessions/s1", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
}
