// Package image calls a remote text-to-image endpoint.
package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 5 * time.Second
	// Extended wait when the remote model answers 503 while warming up.
	defaultLoadingWait = 20 * time.Second
)

// Client generates images from prompts. The endpoint is optional capability;
// an unconfigured client reports so instead of failing mid-request.
type Client struct {
	logger      *slog.Logger
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	maxAttempts int
	backoff     time.Duration
	loadingWait time.Duration
}

func NewClient(log *slog.Logger, endpoint, apiKey string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		logger:      log.With(slog.String("service", "image")),
		httpClient:  &http.Client{Timeout: timeout},
		endpoint:    endpoint,
		apiKey:      apiKey,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		loadingWait: defaultLoadingWait,
	}
}

func (c *Client) Configured() bool {
	return c.endpoint != ""
}

// Generate requests an image, retrying transient failures. A 503 response
// means the remote model is still loading and earns a longer wait before the
// next attempt.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("image endpoint not configured")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		data, wait, err := c.generateOnce(ctx, prompt)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		c.logger.Warn("image generation retry",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("image generation failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (data []byte, wait time.Duration, err error) {
	body, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return nil, c.backoff, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.backoff, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.backoff, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, c.backoff, err
		}
		return data, 0, nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, c.loadingWait, fmt.Errorf("image model still loading")
	default:
		return nil, c.backoff, fmt.Errorf("image api: status %d", resp.StatusCode)
	}
}
