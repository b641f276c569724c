// Package ai talks to the hosted generative text model used for free-text
// teacher imports and access-code suggestions.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

// Config configures the HTTP client.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client calls a generateContent style endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// errRetryable marks failures worth another attempt.
var errRetryable = errors.New("retryable")

// NewClient returns nil when no endpoint is configured, which disables AI features.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Complete sends prompt and returns the concatenated reply text. Transport
// errors and 5xx/429 replies are retried up to MaxRetries times.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", appErrors.Clone(appErrors.ErrAIUnavailable, "text extraction is not configured")
	}
	body, err := json.Marshal(generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", appErrors.Wrap(ctx.Err(), appErrors.ErrAIUnavailable.Code, appErrors.ErrAIUnavailable.Status, "text extraction cancelled")
			case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
			}
		}
		text, err := c.call(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !errors.Is(err, errRetryable) {
			break
		}
		c.logger.Warn("text completion failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return "", appErrors.Wrap(lastErr, appErrors.ErrAIUnavailable.Code, appErrors.ErrAIUnavailable.Status, appErrors.ErrAIUnavailable.Message)
}

func (c *Client) call(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read reply: %v", errRetryable, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: received status %d", errRetryable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("received status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	var sb strings.Builder
	for _, cand := range decoded.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty reply")
	}
	return sb.String(), nil
}

func (c *Client) url() string {
	endpoint := strings.TrimRight(c.cfg.Endpoint, "/")
	if c.cfg.Model == "" {
		return endpoint
	}
	return endpoint + "/" + c.cfg.Model + ":generateContent"
}
