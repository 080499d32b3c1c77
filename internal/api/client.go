package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RequestTimeout is the uniform client-side timeout shared by upload, status
// and send calls. A call exceeding it is treated as a hard failure and
// follows the same rollback path as a transport error.
const RequestTimeout = 120 * time.Second

// Client talks to the persistence/provider boundary over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests to
// shorten timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a boundary client for the given base URL
// (e.g. "http://localhost:5000/api").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: RequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession explicitly creates a new session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", req, &session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &session, nil
}

// SendMessage submits a composed message to a session. The server
// auto-creates the session when the ID is unknown, using the model and
// temperature carried in the request.
func (c *Client) SendMessage(ctx context.Context, sessionID string, req SendRequest) (*SendResult, error) {
	var result SendResult
	path := "/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return &result, nil
}

// ListSessions returns open (not closed) sessions, most recent first.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, &sessions); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// SessionHistory returns all sessions including closed ones.
func (c *Client) SessionHistory(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/history", nil, &sessions); err != nil {
		return nil, fmt.Errorf("listing session history: %w", err)
	}
	return sessions, nil
}

// SessionDetail is the reply to GET /sessions/{id}.
type SessionDetail struct {
	Session  Session   `json:"session"`
	Messages []Message `json:"messages"`
}

// GetSession returns a session with its ordered messages.
func (c *Client) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	var detail SessionDetail
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &detail, nil
}

// UpdateSession applies a partial update to a session.
func (c *Client) UpdateSession(ctx context.Context, id string, patch SessionPatch) (*Session, error) {
	var session Session
	if err := c.doJSON(ctx, http.MethodPut, "/sessions/"+url.PathEscape(id), patch, &session); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return &session, nil
}

// CloseSession marks a session's tab closed. The session stays in history.
func (c *Client) CloseSession(ctx context.Context, id string) error {
	path := "/sessions/" + url.PathEscape(id) + "/close"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}

// ReopenSession clears a session's closed flag.
func (c *Client) ReopenSession(ctx context.Context, id string) (*Session, error) {
	var session Session
	path := "/sessions/" + url.PathEscape(id) + "/reopen"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &session); err != nil {
		return nil, fmt.Errorf("reopening session: %w", err)
	}
	return &session, nil
}

// DeleteSession permanently removes a session and its messages.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteMessage removes a single message. Deleting an absent ID is not an
// error to the caller.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id), nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// UploadFile posts a file as multipart form data and returns its server ID.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating multipart field: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("buffering file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result UploadResult
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("uploading file: %w", err)
	}
	return &result, nil
}

// GetFileStatus returns the upload/processing status of a file.
func (c *Client) GetFileStatus(ctx context.Context, id string) (*FileStatus, error) {
	var status FileStatus
	path := "/files/" + url.PathEscape(id) + "/status"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, fmt.Errorf("getting file status: %w", err)
	}
	return &status, nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// doJSON performs a request with an optional JSON body and decodes the
// JSON response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on response body.

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr) //nolint:errcheck // Fall back to raw body below.
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return responseError(resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
