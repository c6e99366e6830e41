package assistant

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"envman/internal/model"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the generateContent endpoint. The key travels as a
// query parameter.
type GeminiClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(apiKey string, client *http.Client) *GeminiClient {
	return &GeminiClient{
		BaseURL: geminiBaseURL,
		APIKey:  apiKey,
		Client:  client,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Complete sends the conversation; assistant turns are sent with role "model".
func (c *GeminiClient) Complete(ctx context.Context, p Prompt) (string, error) {
	req := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: p.MaxTokens,
			Temperature:     p.Temperature,
		},
	}
	if p.System != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: p.System}}}
	}
	for _, m := range p.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	endpoint := c.BaseURL + "/models/" + url.PathEscape(p.Model) + ":generateContent?key=" + url.QueryEscape(c.APIKey)

	var resp geminiResponse
	if err := postJSON(ctx, c.Client, ProviderGemini.String(), endpoint, nil, req, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", model.NewError(model.KindUnknown, ProviderGemini.String(), "", errors.New("no response from gemini"))
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
