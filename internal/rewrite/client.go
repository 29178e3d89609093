package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://127.0.0.1:11434"
	DefaultModel   = "llama3.1:latest"
	DefaultTimeout = 8000 * time.Millisecond

	generatePath = "/api/generate"
	temperature  = 0.3
	topP         = 0.9
	maxErrorBody = 512
)

// Settings are the knobs of one rewrite call. They are loaded fresh for
// every call.
type Settings struct {
	BaseURL   string
	Model     string
	UserRules string
	Timeout   time.Duration
}

// SettingsProvider is queried at the start of every rewrite call.
type SettingsProvider interface {
	Settings(ctx context.Context) (Settings, error)
}

// StaticSettings is a SettingsProvider that always returns itself.
type StaticSettings Settings

func (s StaticSettings) Settings(context.Context) (Settings, error) { return Settings(s), nil }

func (s Settings) withDefaults() Settings {
	if strings.TrimSpace(s.BaseURL) == "" {
		s.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(s.Model) == "" {
		s.Model = DefaultModel
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	return s
}

// Generator produces raw model text for a prompt.
type Generator interface {
	Generate(ctx context.Context, s Settings, prompt string) (string, error)
}

// OllamaClient talks to an Ollama-compatible /api/generate endpoint.
type OllamaClient struct {
	client *http.Client
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// NewOllamaClient returns a client using hc, or http.DefaultClient when hc is nil.
func NewOllamaClient(hc *http.Client) *OllamaClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &OllamaClient{client: hc}
}

// Generate issues exactly one request bounded by s.Timeout. The request is
// cancelled when the timeout expires. All failures are UpstreamErrors.
func (c *OllamaClient) Generate(ctx context.Context, s Settings, prompt string) (string, error) {
	s = s.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:   s.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: temperature, TopP: topP},
	})
	if err != nil {
		return "", upstreamf(err, "marshal request")
	}

	url := strings.TrimRight(s.BaseURL, "/") + generatePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", upstreamf(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", upstreamf(ctx.Err(), "no response within %s", s.Timeout)
		}
		return "", upstreamf(err, "request %s", url)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", upstreamf(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(respBody))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return "", upstreamf(nil, "status %d: %s", resp.StatusCode, snippet)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", upstreamf(err, "decode response")
	}
	return out.Response, nil
}

var _ Generator = (*OllamaClient)(nil)
