package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"sketchd/internal/logging"
)

// ClientConfig configures the unary HTTP client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// JSONResponse asks the backend for application/json output. Callers
	// still tolerate fenced or prose-wrapped responses.
	JSONResponse bool
}

// Client is the request/response mode of the generation backend: send a
// prompt, await the full text. Used by the planner and verifier, which need
// whole responses rather than streams.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a unary client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Contents          []Content       `json:"contents"`
	SystemInstruction *Content        `json:"systemInstruction,omitempty"`
	GenerationConfig  *generateConfig `json:"generationConfig,omitempty"`
}

type generateConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
	Error *ServerError `json:"error,omitempty"`
}

// Complete sends a prompt and returns the full completion text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction and awaits the
// full response. Transient failures (429, transport errors) are retried with
// exponential backoff.
func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	// Auto-apply timeout if the context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	// Rate limiting: keep a minimum gap between requests.
	c.mu.Lock()
	if gap := time.Since(c.lastRequest); gap < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - gap)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := generateRequest{
		Contents: []Content{
			{Role: "user", Parts: []Part{{Text: userPrompt}}},
		},
		GenerationConfig: &generateConfig{Temperature: 0.2},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
	}
	if c.cfg.JSONResponse {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	start := time.Now()
	logging.GenDebug("unary: model=%s system_len=%d user_len=%d", c.cfg.Model, len(systemPrompt), len(userPrompt))

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var genResp generateResponse
		if err := json.Unmarshal(body, &genResp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if genResp.Error != nil {
			return "", fmt.Errorf("API error %d: %s", genResp.Error.Code, genResp.Error.Message)
		}
		if len(genResp.Candidates) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		var result strings.Builder
		for _, p := range genResp.Candidates[0].Content.Parts {
			result.WriteString(p.Text)
		}
		out := strings.TrimSpace(result.String())
		logging.GenDebug("unary: completed in %v response_len=%d", time.Since(start), len(out))
		return out, nil
	}

	logging.GenError("unary: max retries exceeded: %v", lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
