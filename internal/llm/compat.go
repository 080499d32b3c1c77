package llm

import (
	"context"
	"net/http"

	"github.com/charmbracelet/catwalk/pkg/catwalk"
)

// CompatClient calls a user-configured OpenAI-compatible endpoint.
type CompatClient struct {
	name       string
	baseURL    string
	apiKey     string
	headers    map[string]string
	httpClient *http.Client
	models     map[string]bool
}

// NewCompatClient creates a client for a custom provider definition.
func NewCompatClient(name, baseURL, apiKey string, headers map[string]string, models []catwalk.Model) *CompatClient {
	served := make(map[string]bool, len(models))
	for _, m := range models {
		served[m.ID] = true
	}
	return &CompatClient{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		headers:    headers,
		httpClient: &http.Client{Timeout: requestTimeout},
		models:     served,
	}
}

// Serves reports whether this provider lists the model.
func (c *CompatClient) Serves(model string) bool {
	return c.models[model]
}

// Name returns the provider's display name.
func (c *CompatClient) Name() string {
	return c.name
}

// Generate sends the conversation using the OpenAI chat completions shape
// with the provider's configured auth and extra headers.
func (c *CompatClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return openAICompatGenerate(ctx, c.httpClient, c.baseURL, req, func(r *http.Request) {
		if c.apiKey != "" {
			r.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		for k, v := range c.headers {
			r.Header.Set(k, v)
		}
	})
}
