package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ExaClient calls the Exa search API. Search-mode messages bypass the chat
// providers entirely and return formatted web results.
type ExaClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewExaClient creates an Exa client.
func NewExaClient(apiKey string) *ExaClient {
	return &ExaClient{
		apiKey:     apiKey,
		baseURL:    "https://api.exa.ai",
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type exaRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
	Contents   struct {
		Text bool `json:"text"`
	} `json:"contents"`
}

type exaResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		PublishedDate string `json:"publishedDate"`
		Text          string `json:"text"`
	} `json:"results"`
}

// Search runs a web search and formats the results as a markdown reply.
func (c *ExaClient) Search(ctx context.Context, query string) (string, error) {
	body := exaRequest{Query: query, NumResults: 5}
	body.Contents.Text = true

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("exa API returned %d", resp.StatusCode)
	}

	var out exaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	return formatSearchResults(query, out), nil
}

// Generate satisfies Client: the whole message is treated as the query.
func (c *ExaClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return c.Search(ctx, req.Message)
}

func formatSearchResults(query string, resp exaResponse) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No search results found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		fmt.Fprintf(&b, "\n%d. **%s**\n   %s\n", i+1, title, r.URL)
		if r.PublishedDate != "" {
			fmt.Fprintf(&b, "   Published: %s\n", r.PublishedDate)
		}
		if snippet := snippetOf(r.Text); snippet != "" {
			fmt.Fprintf(&b, "   %s\n", snippet)
		}
	}
	return b.String()
}

// snippetOf trims result text to a short preview.
func snippetOf(text string) string {
	text = strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	const maxLen = 300
	if len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
