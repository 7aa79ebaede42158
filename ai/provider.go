package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// ErrProviderUnavailable is returned when the upstream AI service cannot be
// reached or rejects the request.
var ErrProviderUnavailable = errors.New("ai provider unavailable")

// Provider is the external AI collaborator. Its internals (model quality,
// prompt handling) are not this service's concern; the chat endpoint only
// needs a text completion to bill earnings against.
type Provider interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// HTTPProvider proxies prompts to an OpenAI-compatible chat completions API.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPProvider builds a provider client for the given endpoint.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate sends the prompt and returns the first completion choice.
func (p *HTTPProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	payload := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", ErrProviderUnavailable
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ErrProviderUnavailable
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || len(result.Choices) == 0 {
		return "", ErrProviderUnavailable
	}
	return result.Choices[0].Message.Content, nil
}
