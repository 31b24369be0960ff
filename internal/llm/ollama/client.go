// Package ollama talks to a local Ollama server over its generate API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// warmupTimeout covers the first call, when the server may still be
	// loading the model into memory.
	warmupTimeout = 120 * time.Second
	callTimeout   = 45 * time.Second
)

// Client implements the Generator contract against an Ollama endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	warm       atomic.Bool
}

// New creates a client for the Ollama server at endpoint, e.g.
// "http://localhost:11434".
func New(endpoint string) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{},
	}
}

// Backend returns the provenance suffix for this API family.
func (c *Client) Backend() string { return "ollama-api" }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends one prompt and returns the raw completion text. The
// first successful call is treated as the model warm-up and gets a
// longer deadline.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	timeout := callTimeout
	if !c.warm.Load() {
		timeout = warmupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama api error %d: %s", resp.StatusCode, string(respBody))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	c.warm.Store(true)
	return out.Response, nil
}
