// Package delivery posts rendered articles to the outbound webhook.
//
// Send never returns an error: every failure path (timeouts, connection
// errors, non-2xx statuses, exhausted retries) collapses into false so the
// worker loop only branches on a bool.
package delivery

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

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"publishbot/internal/metrics"
	logx "publishbot/pkg/logx"
)

type Client struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	http  Doer
	sleep Sleeper
	now   func() time.Time
	log   logx.Logger
}

type Option func(*Client)

func WithHTTPClient(d Doer) Option { return func(c *Client) { c.http = d } }

func WithSleeper(s Sleeper) Option { return func(c *Client) { c.sleep = s } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(cfg Config, log logx.Logger, opts ...Option) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{
		// Per-attempt deadlines come from the request context.
		http:  &http.Client{},
		sleep: SleepContext,
		now:   time.Now,
		log:   log,
	}
	c.applyLocked(cfg)
	for _, o := range opts {
		o(c)
	}
	return c
}

// Apply swaps the client config at runtime. In-flight sends keep their snapshot.
func (c *Client) Apply(cfg Config) {
	c.mu.Lock()
	c.applyLocked(cfg)
	c.mu.Unlock()
}

func (c *Client) applyLocked(cfg Config) {
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryWait < 0 {
		cfg.RetryWait = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if strings.TrimSpace(cfg.Source) == "" {
		cfg.Source = DefaultSource
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = "publishbot/1"
	}
	c.cfg = cfg
	if cfg.RatePerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	} else {
		c.limiter = nil
	}
}

func (c *Client) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Send posts subject/html to the webhook, retrying with linear backoff.
// It reports whether any attempt got a 2xx response.
func (c *Client) Send(ctx context.Context, subject, html string) bool {
	c.mu.Lock()
	cfg := c.cfg
	lim := c.limiter
	c.mu.Unlock()

	start := c.now()
	defer func() { metrics.RecordSend(c.now().Sub(start)) }()

	log := c.log.With(logx.String("subject", subject))

	body, err := json.Marshal(Payload{
		Subject:   subject,
		HTML:      html,
		Timestamp: c.now().UTC().Format(time.RFC3339),
		Source:    cfg.Source,
	})
	if err != nil {
		log.Error("webhook payload encode failed", logx.Err(err))
		return false
	}
	reqID := uuid.NewString()

	for attempt := 1; attempt <= cfg.Retries; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				log.Warn("webhook send cancelled", logx.Err(err))
				return false
			}
		}

		status, err := c.post(ctx, cfg, body, reqID)
		if err == nil {
			metrics.RecordAttempt("ok")
			log.Info("webhook sent", logx.Int("attempt", attempt), logx.Int("status", status))
			return true
		}
		if status != 0 {
			metrics.RecordAttempt("status")
		} else {
			metrics.RecordAttempt("error")
		}
		log.Warn("webhook attempt failed",
			logx.Int("attempt", attempt),
			logx.Int("max", cfg.Retries),
			logx.Int("status", status),
			logx.Err(err),
		)
		if ctx.Err() != nil {
			return false
		}
		if attempt < cfg.Retries {
			if err := c.sleep(ctx, BackoffDelay(cfg.RetryWait, attempt)); err != nil {
				return false
			}
		}
	}

	log.Error("webhook send failed", logx.Int("attempts", cfg.Retries), logx.String("request_id", reqID))
	return false
}

// BackoffDelay is the wait after a failed attempt: base * attempt.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(attempt)
}

// post performs one attempt. A non-nil error with status != 0 means a non-2xx response.
func (c *Client) post(ctx context.Context, cfg Config, body []byte, reqID string) (int, error) {
	actx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
