package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logx "publishbot/pkg/logx"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestClient(t *testing.T, url string, sl *recordingSleeper) *Client {
	t.Helper()
	return New(Config{URL: url, Retries: 3, RetryWait: 5 * time.Second}, logx.Nop(), WithSleeper(sl.Sleep))
}

func TestSendSucceedsAfterTwoFailures(t *testing.T) {
	var calls atomic.Int32
	var ids sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids.Store(r.Header.Get("X-Request-ID"), struct{}{})
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sl := &recordingSleeper{}
	c := newTestClient(t, srv.URL, sl)

	if ok := c.Send(context.Background(), "Subject", "<p>x</p>"); !ok {
		t.Fatalf("Send() = false, want true")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if len(sl.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", sl.delays, want)
	}
	for i := range want {
		if sl.delays[i] != want[i] {
			t.Fatalf("delays[%d] = %v, want %v", i, sl.delays[i], want[i])
		}
	}
	n := 0
	ids.Range(func(_, _ any) bool { n++; return true })
	if n != 1 {
		t.Fatalf("distinct request ids = %d, want 1", n)
	}
}

func TestSendGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sl := &recordingSleeper{}
	c := newTestClient(t, srv.URL, sl)

	if ok := c.Send(context.Background(), "s", "h"); ok {
		t.Fatalf("Send() = true, want false")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if len(sl.delays) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(sl.delays))
	}
}

func TestSendPayloadAndHeaders(t *testing.T) {
	var got Payload
	var ct, ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
		ua = r.Header.Get("User-Agent")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := New(Config{URL: srv.URL, Source: "cooking", UserAgent: "publishbot/test"}, logx.Nop(),
		WithClock(func() time.Time { return fixed }))

	if !c.Send(context.Background(), "Hello", "<b>hi</b>") {
		t.Fatalf("Send() = false, want true")
	}
	if got.Subject != "Hello" || got.HTML != "<b>hi</b>" || got.Source != "cooking" {
		t.Fatalf("payload = %+v", got)
	}
	if got.Timestamp != "2024-01-02T03:04:05Z" {
		t.Fatalf("timestamp = %q, want 2024-01-02T03:04:05Z", got.Timestamp)
	}
	if ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if ua != "publishbot/test" {
		t.Fatalf("User-Agent = %q", ua)
	}
}

func TestSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	sl := &recordingSleeper{}
	c := New(Config{URL: url, Retries: 2, RetryWait: time.Second}, logx.Nop(), WithSleeper(sl.Sleep))
	if c.Send(context.Background(), "s", "h") {
		t.Fatalf("Send() = true, want false")
	}
	if len(sl.delays) != 1 || sl.delays[0] != time.Second {
		t.Fatalf("delays = %v, want [1s]", sl.delays)
	}
}

func TestSendCancelledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Config{URL: srv.URL, Retries: 5, RetryWait: time.Hour}, logx.Nop(),
		WithSleeper(func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}))
	if c.Send(ctx, "s", "h") {
		t.Fatalf("Send() = true, want false")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	c := New(Config{URL: "http://x"}, logx.Nop())
	c.Apply(Config{URL: "http://y", Retries: 0, RetryWait: -1})
	cfg := c.Config()
	if cfg.URL != "http://y" {
		t.Fatalf("URL = %q", cfg.URL)
	}
	if cfg.Retries != DefaultRetries {
		t.Fatalf("Retries = %d, want %d", cfg.Retries, DefaultRetries)
	}
	if cfg.RetryWait != 0 {
		t.Fatalf("RetryWait = %v, want 0", cfg.RetryWait)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 15 * time.Second},
	}
	for _, tc := range cases {
		if got := BackoffDelay(5*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("BackoffDelay(5s, %d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Hour); err == nil {
		t.Fatalf("SleepContext() = nil, want error")
	}
}
