package assistant

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"envman/internal/model"
)

const ollamaDefaultHost = "http://localhost:11434"

// OllamaClient handles requests to a local Ollama server.
type OllamaClient struct {
	BaseURL string
	Client  *http.Client
}

// NewOllamaClient creates a client for host, or the default local address.
func NewOllamaClient(host string, client *http.Client) *OllamaClient {
	if host == "" {
		host = ollamaDefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return &OllamaClient{
		BaseURL: strings.TrimRight(host, "/"),
		Client:  client,
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
}

// Complete sends a non-streaming chat request.
func (o *OllamaClient) Complete(ctx context.Context, p Prompt) (string, error) {
	messages := make([]Message, 0, len(p.Messages)+1)
	if p.System != "" {
		messages = append(messages, Message{Role: "system", Content: p.System})
	}
	messages = append(messages, p.Messages...)

	var resp ollamaChatResponse
	err := postJSON(ctx, o.Client, ProviderOllama.String(), o.BaseURL+"/api/chat", nil, ollamaChatRequest{
		Model:    p.Model,
		Messages: messages,
		Options: ollamaOptions{
			Temperature: p.Temperature,
			NumPredict:  p.MaxTokens,
		},
	}, &resp)
	if err != nil {
		return "", err
	}

	if resp.Message.Content == "" {
		return "", model.NewError(model.KindUnknown, ProviderOllama.String(), "", errors.New("no response from ollama"))
	}
	return resp.Message.Content, nil
}
