// Package assistant answers questions about environment files by relaying
// them to a hosted or local language model.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"envman/internal/model"
)

// Provider is one of the fixed set of supported model backends.
type Provider int

const (
	ProviderOpenAI Provider = iota + 1
	ProviderOpenRouter
	ProviderGemini
	ProviderAnthropic
	ProviderOllama
)

// Providers lists every provider in display order.
var Providers = []Provider{
	ProviderOpenAI,
	ProviderOpenRouter,
	ProviderGemini,
	ProviderAnthropic,
	ProviderOllama,
}

func (p Provider) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderOpenRouter:
		return "openrouter"
	case ProviderGemini:
		return "gemini"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderOllama:
		return "ollama"
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

// CredentialEnv names the environment variable holding the provider's key.
// For Ollama it is the server address, which is optional.
func (p Provider) CredentialEnv() string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOllama:
		return "OLLAMA_HOST"
	}
	return ""
}

// NeedsKey reports whether requests fail without a credential.
func (p Provider) NeedsKey() bool {
	return p != ProviderOllama
}

// ParseProvider maps a provider tag onto the enum.
func ParseProvider(tag string) (Provider, error) {
	for _, p := range Providers {
		if p.String() == tag {
			return p, nil
		}
	}
	return 0, model.NewError(model.KindValidation, "parse provider", "",
		fmt.Errorf("%w: %q", model.ErrUnknownProvider, tag))
}

// ModelRef is a parsed "provider/model" string.
type ModelRef struct {
	Provider Provider
	Name     string
}

func (m ModelRef) String() string {
	return m.Provider.String() + "/" + m.Name
}

// ParseModel splits s at its first '/', so OpenRouter names such as
// "openrouter/anthropic/claude-3-haiku" keep their own slash.
func ParseModel(s string) (ModelRef, error) {
	tag, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || name == "" {
		return ModelRef{}, model.NewError(model.KindValidation, "parse model", "",
			fmt.Errorf("%w: model must look like provider/name, got %q", model.ErrInvalidInput, s))
	}
	p, err := ParseProvider(tag)
	if err != nil {
		return ModelRef{}, err
	}
	return ModelRef{Provider: p, Name: name}, nil
}

// ModelOption is an entry of the model picker.
type ModelOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var catalog = map[Provider][]ModelOption{
	ProviderOpenAI: {
		{"openai/gpt-4o-mini", "OpenAI GPT-4o mini"},
		{"openai/gpt-4o", "OpenAI GPT-4o"},
		{"openai/gpt-4", "OpenAI GPT-4"},
	},
	ProviderOpenRouter: {
		{"openrouter/anthropic/claude-3-haiku", "Claude 3 Haiku"},
		{"openrouter/anthropic/claude-3-sonnet", "Claude 3 Sonnet"},
		{"openrouter/meta-llama/llama-3-8b-instruct", "Llama 3 8B"},
	},
	ProviderGemini: {
		{"gemini/gemini-1.5-flash", "Gemini Flash"},
		{"gemini/gemini-1.5-pro", "Gemini Pro"},
	},
	ProviderAnthropic: {
		{"anthropic/claude-sonnet-4-20250514", "Claude Sonnet 4"},
		{"anthropic/claude-3-5-haiku-latest", "Claude 3.5 Haiku"},
	},
	ProviderOllama: {
		{"ollama/llama3.2", "Ollama Llama 3.2 (local)"},
	},
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is what a Completer sends upstream.
type Prompt struct {
	Model       string
	System      string
	Messages    []Message // user and assistant turns, oldest first
	MaxTokens   int
	Temperature float64
}

// Completer talks to a single provider.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}
