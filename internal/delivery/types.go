package delivery

import (
	"context"
	"net/http"
	"time"
)

const (
	DefaultRetries        = 3
	DefaultRetryWait      = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultSource         = "publishbot"
)

// Config controls the webhook client.
type Config struct {
	URL    string
	Source string // "source" field of the payload

	Retries        int           // total attempts per send (min 1)
	RetryWait      time.Duration // linear backoff base: wait RetryWait*attempt before the next attempt
	RequestTimeout time.Duration // per attempt

	// RatePerMinute caps outbound POSTs across all workers. 0 disables the limit.
	RatePerMinute int

	UserAgent string
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Doer is the subset of *http.Client the client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
