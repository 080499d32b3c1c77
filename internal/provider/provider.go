// Package provider maps model identifiers to the backend that serves them.
package provider

import (
	"strings"

	"github.com/avoronov/converse/internal/config"
)

// Tag identifies a logical provider backend.
type Tag string

// Provider tags.
const (
	Gemini     Tag = "gemini"
	OpenRouter Tag = "openrouter"
	Exa        Tag = "exa"
	Custom     Tag = "custom"
)

// geminiModels are the built-in Gemini identifiers recognized without
// consulting user bindings.
var geminiModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.5-flash-lite-preview-06-17",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-pro",
	"gemini-pro-vision",
}

// Resolve maps a model identifier plus the user's configuration snapshot to a
// provider tag. Resolution never fails: built-in providers take priority over
// user bindings, and an unrecognized model degrades to OpenRouter rather than
// blocking the send.
func Resolve(model string, snap config.Snapshot) Tag {
	if model == "" {
		return Gemini
	}

	if isGeminiModel(model) {
		return Gemini
	}

	if bound, ok := snap.Binding(model); ok {
		switch Tag(bound) {
		case Gemini, OpenRouter, Exa:
			return Tag(bound)
		default:
			// Bound to a custom provider key, or not bound at all.
			return Custom
		}
	}

	return OpenRouter
}

func isGeminiModel(model string) bool {
	if strings.HasPrefix(model, "gemini") {
		return true
	}
	for _, gm := range geminiModels {
		if model == gm {
			return true
		}
	}
	return false
}
