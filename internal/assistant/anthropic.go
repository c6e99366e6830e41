package assistant

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"envman/internal/model"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicClient handles Anthropic messages API requests.
type AnthropicClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string, client *http.Client) *AnthropicClient {
	return &AnthropicClient{
		BaseURL: anthropicBaseURL,
		APIKey:  apiKey,
		Client:  client,
	}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"content"`
}

// Complete sends the conversation to Claude. The system prompt travels in its
// own field rather than as a message.
func (c *AnthropicClient) Complete(ctx context.Context, p Prompt) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var resp anthropicResponse
	err := postJSON(ctx, c.Client, ProviderAnthropic.String(), c.BaseURL+"/messages", map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": anthropicVersion,
	}, anthropicRequest{
		Model:       p.Model,
		MaxTokens:   maxTokens,
		Messages:    p.Messages,
		System:      p.System,
		Temperature: p.Temperature,
	}, &resp)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" || block.Type == "" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", model.NewError(model.KindUnknown, ProviderAnthropic.String(), "", errors.New("no response from claude"))
	}
	return b.String(), nil
}
