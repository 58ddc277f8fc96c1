package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"go-alloy/pkg/metrics"
	"go-alloy/pkg/models"
)

var ErrMissingAPIKey = errors.New("tavily api key is not set")

type Client struct {
	apiKey     string
	baseURL    string
	depth      string
	maxResults int
	http       *http.Client
	policy     *bluemonday.Policy
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithDepth(depth string) Option {
	return func(c *Client) { c.depth = depth }
}

func WithMaxResults(n int) Option {
	return func(c *Client) { c.maxResults = n }
}

func New(apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    "https://api.tavily.com",
		depth:      "advanced",
		maxResults: 5,
		http:       &http.Client{Timeout: timeout},
		policy:     bluemonday.StrictPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Query       string `json:"query"`
	APIKey      string `json:"api_key"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchResponse struct {
	Results []result `json:"results"`
}

// Search runs one query and returns the joined result text with its sources.
func (c *Client) Search(ctx context.Context, query string) (models.SearchResult, error) {
	if c.apiKey == "" {
		return models.SearchResult{}, ErrMissingAPIKey
	}

	body, err := json.Marshal(searchRequest{Query: query, APIKey: c.apiKey, SearchDepth: c.depth, MaxResults: c.maxResults})
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExternalCalls.WithLabelValues("tavily", "error").Inc()
		return models.SearchResult{}, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ExternalCalls.WithLabelValues("tavily", "error").Inc()
		return models.SearchResult{}, fmt.Errorf("tavily api status: %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ExternalCalls.WithLabelValues("tavily", "error").Inc()
		return models.SearchResult{}, fmt.Errorf("decode: %w", err)
	}
	metrics.ExternalCalls.WithLabelValues("tavily", "ok").Inc()

	parts := make([]string, 0, len(out.Results))
	sources := make([]models.Source, 0, len(out.Results))
	for _, r := range out.Results {
		content := strings.TrimSpace(c.policy.Sanitize(r.Content))
		parts = append(parts, fmt.Sprintf("Title: %s\nURL: %s\nContent: %s", r.Title, r.URL, content))
		sources = append(sources, models.Source{Title: r.Title, URL: r.URL})
	}
	return models.SearchResult{Text: strings.Join(parts, "\n\n"), Sources: sources}, nil
}
