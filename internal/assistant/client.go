package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"envman/internal/model"
)

const systemPrompt = "You are an expert in managing environment variables. " +
	"Answer questions about .env files, suggest security best practices, " +
	"and explain how to improve configuration files."

// Options configures a Client. Zero values fall back to the defaults of New.
type Options struct {
	Timeout     time.Duration
	Retries     int
	RetryDelay  time.Duration
	MaxTokens   int
	Temperature float64
	History     int

	// Credentials holds API keys by provider; for Ollama the host address.
	Credentials map[Provider]string

	// Completers replaces the built-in client for a provider.
	Completers map[Provider]Completer

	HTTPClient *http.Client
	Referer    string
	Logger     *slog.Logger
}

// Conversation is one user question plus its context.
type Conversation struct {
	Model   string    `json:"model"`
	Message string    `json:"message"`
	History []Message `json:"history"`

	// Context is extra system text, such as the variables of the open file.
	Context string `json:"-"`
}

// Client routes a conversation to the provider named by its model and
// retries transient network failures.
type Client struct {
	opts       Options
	completers map[Provider]Completer
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// CredentialsFromEnv reads each provider's credential variable.
func CredentialsFromEnv() map[Provider]string {
	creds := make(map[Provider]string)
	for _, p := range Providers {
		if v := strings.TrimSpace(os.Getenv(p.CredentialEnv())); v != "" {
			creds[p] = v
		}
	}
	return creds
}

// New builds a Client with one completer per provider.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.History < 0 {
		opts.History = 0
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Credentials == nil {
		opts.Credentials = map[Provider]string{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := opts.HTTPClient
	creds := opts.Credentials
	completers := map[Provider]Completer{
		ProviderOpenAI:     NewOpenAIClient(creds[ProviderOpenAI], hc),
		ProviderOpenRouter: NewOpenRouterClient(creds[ProviderOpenRouter], opts.Referer, hc),
		ProviderGemini:     NewGeminiClient(creds[ProviderGemini], hc),
		ProviderAnthropic:  NewAnthropicClient(creds[ProviderAnthropic], hc),
		ProviderOllama:     NewOllamaClient(creds[ProviderOllama], hc),
	}
	for p, c := range opts.Completers {
		completers[p] = c
	}

	return &Client{
		opts:       opts,
		completers: completers,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Configured reports whether p can be used.
func (c *Client) Configured(p Provider) bool {
	if !p.NeedsKey() {
		_, ok := c.opts.Credentials[p]
		return ok
	}
	return c.opts.Credentials[p] != ""
}

// Available lists the models of every configured provider.
func (c *Client) Available() []ModelOption {
	var out []ModelOption
	for _, p := range Providers {
		if c.Configured(p) {
			out = append(out, catalog[p]...)
		}
	}
	return out
}

// Chat answers conv.Message. Only network failures are retried, up to
// Options.Retries extra attempts, each bounded by Options.Timeout.
func (c *Client) Chat(ctx context.Context, conv Conversation) (string, error) {
	if strings.TrimSpace(conv.Message) == "" {
		return "", model.NewError(model.KindValidation, "chat", "",
			fmt.Errorf("%w: message is required", model.ErrInvalidInput))
	}

	ref, err := ParseModel(conv.Model)
	if err != nil {
		return "", err
	}
	if ref.Provider.NeedsKey() && c.opts.Credentials[ref.Provider] == "" {
		return "", model.NewError(model.KindValidation, "chat", "",
			fmt.Errorf("%w: set %s", model.ErrMissingCredential, ref.Provider.CredentialEnv()))
	}
	completer := c.completers[ref.Provider]

	prompt := Prompt{
		Model:       ref.Name,
		System:      systemPrompt,
		Messages:    c.messages(conv),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	}
	if conv.Context != "" {
		prompt.System += "\n\n" + conv.Context
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying chat request",
				"provider", ref.Provider, "attempt", attempt+1, "error", lastErr)
			if err := c.sleep(ctx, c.opts.RetryDelay); err != nil {
				return "", model.NewError(model.KindNetwork, "chat", "", err)
			}
		}

		reply, err := c.attempt(ctx, completer, prompt)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if ctx.Err() != nil || !model.KindOf(err).Retryable() {
			return "", err
		}
	}

	return "", fmt.Errorf("giving up after %d attempts: %w", c.opts.Retries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, completer Completer, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	return completer.Complete(ctx, p)
}

// messages keeps the last History user/assistant turns and appends the question.
func (c *Client) messages(conv Conversation) []Message {
	var history []Message
	for _, m := range conv.History {
		if (m.Role == "user" || m.Role == "assistant") && m.Content != "" {
			history = append(history, m)
		}
	}
	if len(history) > c.opts.History {
		history = history[len(history)-c.opts.History:]
	}

	out := make([]Message, 0, len(history)+1)
	out = append(out, history...)
	return append(out, Message{Role: "user", Content: conv.Message})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
