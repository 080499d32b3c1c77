// Package llm implements the upstream model provider clients. Every client
// speaks its provider's HTTP API directly; the server treats them uniformly
// through the Client interface.
package llm

import (
	"context"
	"time"
)

// Client types persisted on sessions and used for routing.
const (
	ClientGemini     = "gemini"
	ClientOpenRouter = "openrouter"
	ClientExa        = "exa"
	ClientCustom     = "custom"
)

// requestTimeout bounds a single upstream generation call.
const requestTimeout = 110 * time.Second

// Turn is one prior exchange in the conversation history.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Attachment is a processed upload referenced by the prompt.
type Attachment struct {
	Path     string
	MimeType string
}

// GenerateRequest carries everything a provider needs for one completion.
type GenerateRequest struct {
	Model       string
	Temperature float64
	History     []Turn
	Message     string
	Attachments []Attachment
}

// Client generates a completion for a conversation.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
