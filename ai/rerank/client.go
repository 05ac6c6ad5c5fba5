// Copyright 2025 Solenne Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package rerank implements ai.Scorer against a TEI-style reranking service.
//
// The client POSTs {"query": ..., "texts": [...]} to the service's /rerank
// endpoint and maps the returned (index, score) pairs back to input order.
// Cross-encoder servers such as text-embeddings-inference and compatible
// gateways (Jina, Cohere-style) speak this shape.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client scores (query, candidate) pairs using a remote reranking service.
// It implements ai.Scorer.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the model identifier included in rerank requests.
// TEI-style servers host a single model and ignore it; multi-model
// gateways require it.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a rerank client for the given base URL.
// The /rerank path is appended to the base URL for each request.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default().With("component", "rerank-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rerankRequest is the wire format for a rerank call.
type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

// rerankResult is one scored entry in the service response.
// Index refers to the position in the request's Texts slice; the service
// may return results in any order (TEI sorts by score).
type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// ScorePairs scores each candidate against the query in a single batched
// request and returns one score per candidate, in input order.
func (c *Client) ScorePairs(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}

	payload, err := json.Marshal(rerankRequest{
		Query: query,
		Texts: candidates,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("scoring candidate pairs", "count", len(candidates))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("rerank request failed", "err", err)
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank request failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	// Map (index, score) pairs back to input order. Candidates the service
	// omits keep a zero score.
	scores := make([]float64, len(candidates))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(scores) {
			return nil, fmt.Errorf("rerank response index %d out of range [0, %d)", r.Index, len(scores))
		}
		scores[r.Index] = r.Score
	}
	return scores, nil
}
