// Package claude talks to the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const callTimeout = 45 * time.Second

// Client implements the Generator contract over the Anthropic SDK.
type Client struct {
	client anthropic.Client
}

// New creates a client authenticated with apiKey. Extra options are
// passed through to the SDK, which tests use to point at a fake server.
func New(apiKey string, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{client: anthropic.NewClient(opts...)}
}

// Backend returns the provenance suffix for this API family.
func (c *Client) Backend() string { return "claude-api" }

// Generate sends one prompt and returns the first text block of the
// reply.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   1024,
		Temperature: anthropic.Float(0.3),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude api: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("claude api: no text content in reply")
}
