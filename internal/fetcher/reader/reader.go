// Package reader fetches pages as markdown through the Jina Reader API.
package reader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JakeFAU/research-fetcher/internal/research"
)

// DefaultBaseURL is the public reader endpoint.
const DefaultBaseURL = "https://r.jina.ai"

// Config configures the reader client.
type Config struct {
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
}

// Client converts a target URL into markdown by requesting BaseURL/<url>.
type Client struct {
	getter  research.Getter
	baseURL string
	apiKey  string
}

// New builds a Client.
func New(getter research.Getter, cfg Config) (*Client, error) {
	if getter == nil {
		return nil, errors.New("reader getter is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{getter: getter, baseURL: base, apiKey: cfg.APIKey}, nil
}

// Method implements research.Stage.
func (c *Client) Method() string {
	return research.MethodReader
}

// Fetch returns the reader's markdown rendering of rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) (research.Page, error) {
	headers := http.Header{}
	headers.Set("Accept", "text/markdown")
	if c.apiKey != "" {
		headers.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.getter.Get(ctx, c.baseURL+"/"+rawURL, headers)
	if err != nil {
		return research.Page{}, fmt.Errorf("reader fetch %s: %w", rawURL, err)
	}
	content := string(resp.Body)
	return research.Page{
		Content: content,
		Title:   ExtractTitle(content),
		Method:  research.MethodReader,
	}, nil
}

// ExtractTitle returns the text of the first level-one heading, or "".
func ExtractTitle(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}
