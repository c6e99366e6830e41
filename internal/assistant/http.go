package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"envman/internal/model"
)

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: %d %s - %s",
		e.Provider, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Kind treats rate limiting and server errors as transient and every other
// rejection as the caller's fault.
func (e *APIError) Kind() model.Kind {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return model.KindNetwork
	}
	return model.KindValidation
}

const maxErrorBody = 2048

// postJSON sends body to url and decodes a 200 answer into out. Transport
// failures come back as network errors.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return model.NewError(model.KindUnknown, provider, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return model.NewError(model.KindValidation, provider, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return model.NewError(model.KindNetwork, provider, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
		return model.NewError(apiErr.Kind(), provider, "", apiErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.NewError(model.KindUnknown, provider, "", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
