// Package llm is the OpenAI-compatible chat client behind the honeypot's
// three LLM consumers: reply naturalization, classification refinement, and
// second-layer intelligence extraction. Every call is bounded by the safety
// fabric at the call site; this package only speaks the wire protocol.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/decoynet/honeypot/pkg/config"
	"github.com/decoynet/honeypot/pkg/httputil"
)

// ErrBusy is returned when the concurrency limiter is saturated. Callers
// fall back to templates instead of queueing.
var ErrBusy = errors.New("llm: concurrency limit reached")

// ErrDisabled is returned when the client was built without a usable
// provider configuration.
var ErrDisabled = errors.New("llm: disabled")

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Client talks to one OpenAI-compatible chat endpoint. A single Client is
// shared process-wide; the semaphore bounds concurrent upstream calls so a
// burst of sessions cannot pile up goroutines behind a slow provider.
type Client struct {
	client   *http.Client
	provider config.LLMProvider
	baseURL  string
	apiKey   string
	model    string
	enabled  bool
	sem      *httputil.Semaphore
}

// NewClient builds a chat client from config. When the config disables LLM
// usage the client still constructs, but every call returns ErrDisabled so
// callers uniformly fall through to templates.
func NewClient(cfg *config.Config) *Client {
	baseURL := cfg.LLMBaseURL
	if baseURL == "" {
		switch cfg.LLMProvider {
		case config.ProviderOllama:
			baseURL = "http://localhost:11434/v1"
		case config.ProviderGroq:
			baseURL = "https://api.groq.com/openai/v1"
		case config.ProviderOpenAI:
			baseURL = "https://api.openai.com/v1"
		default:
			baseURL = "https://openrouter.ai/api/v1"
		}
	}

	model := cfg.LLMModel
	if model == "" {
		if cfg.LLMProvider == config.ProviderOllama {
			model = "qwen2.5:7b"
		} else {
			model = "meta-llama/llama-3.1-8b-instruct:free"
		}
	}

	return &Client{
		client:   httputil.FastClient(),
		provider: cfg.LLMProvider,
		baseURL:  baseURL,
		apiKey:   cfg.LLMAPIKey,
		model:    model,
		enabled:  cfg.LLMEnabled,
		sem:      httputil.NewSemaphore(cfg.MaxLLMInFlight),
	}
}

// Enabled reports whether the client will attempt upstream calls at all.
func (c *Client) Enabled() bool {
	return c.enabled
}

// SemStats exposes limiter occupancy for the stats endpoint.
func (c *Client) SemStats() httputil.SemaphoreStats {
	return c.sem.Stats()
}

// complete runs one chat completion under the concurrency limiter.
func (c *Client) complete(ctx context.Context, msgs []message, temperature float64, maxTokens int) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}
	if !c.sem.TryAcquire() {
		return "", ErrBusy
	}
	defer c.sem.Release()

	return c.callLLM(ctx, chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
}

func (c *Client) callLLM(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer httputil.DrainAndClose(resp.Body)

	// Upstream providers are untrusted; cap the body so a broken provider
	// cannot exhaust memory. 2MB is generous for any chat completion.
	const maxResponseSize = 2 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", err
	}

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal error: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return result.Choices[0].Message.Content, nil
}

// extractJSON trims markdown fences and prose around a JSON object.
func extractJSON(content string) string {
	clean := strings.TrimSpace(content)
	if start := strings.Index(clean, "{"); start != -1 {
		clean = clean[start:]
	}
	if end := strings.LastIndex(clean, "}"); end != -1 {
		clean = clean[:end+1]
	}
	return clean
}
