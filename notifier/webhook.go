package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"marketplace-watcher/config"
	"marketplace-watcher/utils"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Poster delivers one payload to the channel.
type Poster interface {
	Post(ctx context.Context, payload MessagePayload) error
}

// WebhookClient posts JSON payloads to a Discord webhook. Sends are paced
// by a limiter and retried on network errors, 429 and 5xx responses.
type WebhookClient struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

func NewWebhookClient(cfg config.WebhookConfig, log zerolog.Logger) *WebhookClient {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &WebhookClient{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
		log:        log.With().Str("component", "WebhookClient").Logger(),
	}
}

func (c *WebhookClient) Post(ctx context.Context, payload MessagePayload) error {
	if c.url == "" {
		c.log.Warn().Msg("Webhook URL is not configured, skipping notification")
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	return utils.Retry(ctx, c.log, c.maxRetries, c.backoff, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &utils.Permanent{Err: err}
		}
		return c.send(ctx, body)
	})
}

func (c *WebhookClient) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &utils.Permanent{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &utils.RetryAfter{
			Err:   fmt.Errorf("webhook rate limited: %s", bytes.TrimSpace(msg)),
			Delay: retryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	default:
		return &utils.Permanent{Err: fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))}
	}
}

// retryAfter parses the Retry-After header (seconds, possibly fractional).
func retryAfter(v string) time.Duration {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
