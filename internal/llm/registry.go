package llm

import (
	"context"
	"fmt"
	"strings"
)

// Registry holds the configured provider clients and routes models to them.
// A nil client means the provider's key was absent; requests routed to it
// fail with a "not configured" error that clients recognize.
type Registry struct {
	gemini     *GeminiClient
	openRouter *OpenRouterClient
	exa        *ExaClient
	custom     []*CompatClient
}

// RegistryConfig carries the provider credentials and custom definitions.
type RegistryConfig struct {
	GeminiKey     string
	OpenRouterKey string
	ExaKey        string
	Custom        []*CompatClient
}

// NewRegistry builds a registry from the available credentials.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{custom: cfg.Custom}
	if cfg.GeminiKey != "" {
		r.gemini = NewGeminiClient(cfg.GeminiKey)
	}
	if cfg.OpenRouterKey != "" {
		r.openRouter = NewOpenRouterClient(cfg.OpenRouterKey)
	}
	if cfg.ExaKey != "" {
		r.exa = NewExaClient(cfg.ExaKey)
	}
	return r
}

// ClientTypeFor maps a model name to the client type that serves it.
func (r *Registry) ClientTypeFor(model string) string {
	if model == "" || strings.HasPrefix(model, "gemini") {
		return ClientGemini
	}
	for _, c := range r.custom {
		if c.Serves(model) {
			return ClientCustom
		}
	}
	return ClientOpenRouter
}

// For returns the client serving the model, or a "not configured" error when
// the provider's credentials are missing.
func (r *Registry) For(model string) (Client, string, error) {
	clientType := r.ClientTypeFor(model)

	switch clientType {
	case ClientGemini:
		if r.gemini == nil {
			return nil, clientType, fmt.Errorf("gemini client not configured")
		}
		return r.gemini, clientType, nil
	case ClientCustom:
		for _, c := range r.custom {
			if c.Serves(model) {
				return c, clientType, nil
			}
		}
		return nil, clientType, fmt.Errorf("custom provider not configured for model %q", model)
	default:
		if r.openRouter == nil {
			return nil, clientType, fmt.Errorf("openrouter client not configured")
		}
		return r.openRouter, clientType, nil
	}
}

// Exa returns the search client, or a "not configured" error.
func (r *Registry) Exa() (*ExaClient, error) {
	if r.exa == nil {
		return nil, fmt.Errorf("exa search not configured")
	}
	return r.exa, nil
}

// Search runs a search-mode query through the Exa client.
func (r *Registry) Search(ctx context.Context, query string) (string, error) {
	exa, err := r.Exa()
	if err != nil {
		return "", err
	}
	return exa.Search(ctx, query)
}
