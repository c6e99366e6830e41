package assistant

import (
	"context"
	"errors"
	"net/http"

	"envman/internal/model"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterTitle   = "Environment Variables Manager"
)

// OpenAIClient speaks the chat completions API shared by OpenAI and OpenRouter.
type OpenAIClient struct {
	Name    string
	BaseURL string
	APIKey  string
	Headers map[string]string
	Client  *http.Client
}

// NewOpenAIClient creates a client for api.openai.com.
func NewOpenAIClient(apiKey string, client *http.Client) *OpenAIClient {
	return &OpenAIClient{
		Name:    ProviderOpenAI.String(),
		BaseURL: openAIBaseURL,
		APIKey:  apiKey,
		Client:  client,
	}
}

// NewOpenRouterClient creates a client for openrouter.ai. referer identifies
// the calling site and may be empty.
func NewOpenRouterClient(apiKey, referer string, client *http.Client) *OpenAIClient {
	headers := map[string]string{"X-Title": openRouterTitle}
	if referer != "" {
		headers["HTTP-Referer"] = referer
	}
	return &OpenAIClient{
		Name:    ProviderOpenRouter.String(),
		BaseURL: openRouterBaseURL,
		APIKey:  apiKey,
		Headers: headers,
		Client:  client,
	}
}

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends a chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, p Prompt) (string, error) {
	messages := make([]Message, 0, len(p.Messages)+1)
	if p.System != "" {
		messages = append(messages, Message{Role: "system", Content: p.System})
	}
	messages = append(messages, p.Messages...)

	headers := map[string]string{"Authorization": "Bearer " + c.APIKey}
	for k, v := range c.Headers {
		headers[k] = v
	}

	var resp openAIChatResponse
	err := postJSON(ctx, c.Client, c.Name, c.BaseURL+"/chat/completions", headers, openAIChatRequest{
		Model:       p.Model,
		Messages:    messages,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", model.NewError(model.KindUnknown, c.Name, "", errors.New("no response from "+c.Name))
	}
	return resp.Choices[0].Message.Content, nil
}
