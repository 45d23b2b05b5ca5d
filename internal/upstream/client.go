package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	defaultMaxTokens = 3000
	defaultTimeout   = 30 * time.Second
	maxErrorBodyLen  = 512
)

// Config drives the invocation client.
type Config struct {
	// URLTemplate receives the region and the model identifier, e.g.
	// "https://bedrock-runtime.%s.amazonaws.com/model/%s/invoke".
	URLTemplate string
	Model       string
	APIKey      string
	MaxTokens   int
	Timeout     time.Duration
}

// Client posts Anthropic-messages payloads to a per-region backend. It
// implements dispatch.Invoker.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Invoke sends the prompt to the region's backend and returns the generated
// text.
func (c *Client) Invoke(ctx context.Context, region, prompt string) (string, error) {
	payload, errBuild := c.buildPayload(prompt)
	if errBuild != nil {
		return "", errBuild
	}

	url := fmt.Sprintf(c.cfg.URLTemplate, region, c.cfg.Model)
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if errReq != nil {
		return "", fmt.Errorf("upstream: build request for %s: %w", region, errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("upstream: invoke %s: %w", region, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return "", fmt.Errorf("upstream: read response from %s: %w", region, errRead)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream: %s returned %d: %s", region, resp.StatusCode, truncate(body))
	}

	text := gjson.GetBytes(body, "content.0.text")
	if !text.Exists() {
		text = gjson.GetBytes(body, "completion")
	}
	if !text.Exists() {
		return "", fmt.Errorf("upstream: %s returned no text content", region)
	}
	return text.String(), nil
}

func (c *Client) buildPayload(prompt string) ([]byte, error) {
	payload := ""
	var errSet error
	for _, set := range []struct {
		path  string
		value any
	}{
		{"anthropic_version", anthropicVersion},
		{"max_tokens", c.cfg.MaxTokens},
		{"messages.0.role", "user"},
		{"messages.0.content", prompt},
	} {
		payload, errSet = sjson.Set(payload, set.path, set.value)
		if errSet != nil {
			return nil, fmt.Errorf("upstream: build payload: %w", errSet)
		}
	}
	return []byte(payload), nil
}

func truncate(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > maxErrorBodyLen {
		return trimmed[:maxErrorBodyLen] + "..."
	}
	return trimmed
}
