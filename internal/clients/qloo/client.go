package qloo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-alloy/pkg/metrics"
)

var (
	ErrRateLimited = errors.New("qloo rate limited")
	ErrNotFound    = errors.New("qloo entity not found")
)

// Client talks to the Qloo taste graph.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type response struct {
	Data []Entity `json:"data"`
}

type filter struct {
	Type string `json:"type,omitempty"`
}

type searchRequest struct {
	Query  string  `json:"query"`
	Filter *filter `json:"filter,omitempty"`
	Take   int     `json:"take"`
}

type insightsRequest struct {
	ID     []string `json:"id,omitempty"`
	Signal *signal  `json:"signal,omitempty"`
	Take   int      `json:"take"`
}

type signal struct {
	Interests interests `json:"interests"`
}

type interests struct {
	Entities []string `json:"entities"`
}

// SearchEntity returns the id of the first match. An empty entityType searches all types.
func (c *Client) SearchEntity(ctx context.Context, query, entityType string) (string, error) {
	req := searchRequest{Query: query, Take: 1}
	if entityType != "" {
		req.Filter = &filter{Type: "urn:entity:" + entityType}
	}
	res, err := c.post(ctx, "/v2/search", req)
	if err != nil {
		return "", err
	}
	for _, e := range res.Data {
		if e.ID != "" {
			return e.ID, nil
		}
	}
	return "", ErrNotFound
}

// Affinities returns the names of the strongest audience tastes of an entity.
func (c *Client) Affinities(ctx context.Context, id string, take int) ([]string, error) {
	res, err := c.post(ctx, "/v2/insights", insightsRequest{ID: []string{id}, Take: take})
	if err != nil {
		return nil, err
	}
	return names(res.Data), nil
}

// PredictAffinities extrapolates a persona from a set of seed entities.
func (c *Client) PredictAffinities(ctx context.Context, ids []string, take int) ([]string, error) {
	res, err := c.post(ctx, "/v2/insights", insightsRequest{Signal: &signal{Interests: interests{Entities: ids}}, Take: take})
	if err != nil {
		return nil, err
	}
	return names(res.Data), nil
}

func names(entities []Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		if e.Name != "" {
			out = append(out, e.Name)
		}
	}
	return out
}

func (c *Client) post(ctx context.Context, path string, payload any) (response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return response{}, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExternalCalls.WithLabelValues("qloo", "error").Inc()
		return response{}, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.ExternalCalls.WithLabelValues("qloo", "rate_limited").Inc()
		return response{}, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.ExternalCalls.WithLabelValues("qloo", "error").Inc()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return response{}, fmt.Errorf("qloo api status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ExternalCalls.WithLabelValues("qloo", "error").Inc()
		return response{}, fmt.Errorf("decode: %w", err)
	}
	metrics.ExternalCalls.WithLabelValues("qloo", "ok").Inc()
	return out, nil
}
