package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/catwalk/pkg/catwalk"
)

func TestGeminiClient_Generate(t *testing.T) {
	var gotPath string
	var gotBody geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "Hello "}, {"text": "there"}}}},
			},
		})
	}))
	defer server.Close()

	client := NewGeminiClient("test-key")
	client.baseURL = server.URL

	got, err := client.Generate(context.Background(), GenerateRequest{
		Model:       "gemini-2.5-flash",
		Temperature: 0.5,
		History:     []Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		Message:     "how are you?",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Hello there" {
		t.Errorf("Generate() = %q", got)
	}
	if !strings.Contains(gotPath, "gemini-2.5-flash:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotBody.Contents) != 3 {
		t.Fatalf("contents = %d, want history plus message", len(gotBody.Contents))
	}
	if gotBody.Contents[1].Role != "model" {
		t.Errorf("assistant turn role = %q, want model", gotBody.Contents[1].Role)
	}
	if gotBody.GenerationConfig.Temperature != 0.5 {
		t.Errorf("temperature = %v", gotBody.GenerationConfig.Temperature)
	}
}

func TestGeminiClient_GenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid model"}}`))
	}))
	defer server.Close()

	client := NewGeminiClient("test-key")
	client.baseURL = server.URL

	_, err := client.Generate(context.Background(), GenerateRequest{Model: "bogus", Message: "hi"})
	if err == nil || !strings.Contains(err.Error(), "invalid model") {
		t.Errorf("expected API error message, got %v", err)
	}
}

func TestOpenRouterClient_Generate(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "response text"}},
			},
		})
	}))
	defer server.Close()

	client := NewOpenRouterClient("or-key")
	client.baseURL = server.URL

	got, err := client.Generate(context.Background(), GenerateRequest{
		Model:       "deepseek/deepseek-chat",
		Temperature: 0.9,
		History:     []Turn{{Role: "user", Content: "earlier"}},
		Message:     "now",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "response text" {
		t.Errorf("Generate() = %q", got)
	}
	if gotAuth != "Bearer or-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[1].Content != "now" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
}

func TestExaClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "exa-key" {
			t.Errorf("missing api key header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Go Blog", "url": "https://go.dev/blog", "text": "The Go programming language blog."},
			},
		})
	}))
	defer server.Close()

	client := NewExaClient("exa-key")
	client.baseURL = server.URL

	got, err := client.Search(context.Background(), "golang news")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, want := range []string{"golang news", "Go Blog", "https://go.dev/blog"} {
		if !strings.Contains(got, want) {
			t.Errorf("result missing %q:\n%s", want, got)
		}
	}
}

func TestExaClient_SearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client := NewExaClient("exa-key")
	client.baseURL = server.URL

	got, err := client.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !strings.Contains(got, "No search results") {
		t.Errorf("got %q", got)
	}
}

func TestRegistry_ClientTypeFor(t *testing.T) {
	custom := NewCompatClient("LocalAI", "http://localhost:8080/v1", "", nil,
		[]catwalk.Model{{ID: "llama-3-local"}})
	registry := NewRegistry(RegistryConfig{
		GeminiKey:     "g",
		OpenRouterKey: "o",
		Custom:        []*CompatClient{custom},
	})

	tests := []struct {
		model string
		want  string
	}{
		{"", ClientGemini},
		{"gemini-2.5-flash", ClientGemini},
		{"gemini-exp-something", ClientGemini},
		{"llama-3-local", ClientCustom},
		{"deepseek/deepseek-chat", ClientOpenRouter},
	}

	for _, tt := range tests {
		if got := registry.ClientTypeFor(tt.model); got != tt.want {
			t.Errorf("ClientTypeFor(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestRegistry_ForUnconfigured(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})

	tests := []struct {
		name  string
		model string
	}{
		{"gemini", "gemini-2.5-flash"},
		{"openrouter", "deepseek/deepseek-chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := registry.For(tt.model)
			if err == nil || !strings.Contains(err.Error(), "not configured") {
				t.Errorf("expected not configured error, got %v", err)
			}
		})
	}

	if _, err := registry.Exa(); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("expected not configured error for Exa, got %v", err)
	}
}
