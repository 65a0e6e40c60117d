package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"publishbot/internal/config"
)

type webhookRecorder struct {
	mu       sync.Mutex
	subjects []string
}

func (r *webhookRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var p struct {
		Subject string `json:"subject"`
	}
	_ = json.NewDecoder(req.Body).Decode(&p)
	r.mu.Lock()
	r.subjects = append(r.subjects, p.Subject)
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *webhookRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, dir, webhook string, port int) string {
	t.Helper()
	body := fmt.Sprintf(`{
		"data_dir": %q,
		"webhook": {"url": %q, "retries": 1},
		"schedule": {"quota_min": 1, "quota_max": 1, "interval_min": 60, "interval_max": 60},
		"languages": [{"code": "en", "label": "English", "articles_file": %q}],
		"http": {"host": "127.0.0.1", "port": %d},
		"keepalive": {"disabled": true, "systemd": false},
		"storage": {"driver": "file", "path": %q}
	}`, dir, webhook, filepath.Join(dir, "articles_en.json"), port, filepath.Join(dir, "bot"))
	p := filepath.Join(dir, "config.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestAppPublishesSeededArticle(t *testing.T) {
	hook := &webhookRecorder{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	dir := t.TempDir()
	port := freePort(t)
	cfgm := config.NewConfigManager(writeConfig(t, dir, srv.URL, port))
	cfgm.SetLookup(func(string) (string, bool) { return "", false })

	a, err := New(cfgm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for hook.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if hook.count() != 1 {
		t.Fatalf("webhook calls = %d, want 1", hook.count())
	}

	var ledgerLine string
	for time.Now().Before(deadline) {
		b, _ := os.ReadFile(filepath.Join(dir, "log_en.txt"))
		if ledgerLine = strings.TrimSpace(string(b)); ledgerLine != "" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.HasPrefix(ledgerLine, "ID:1|") || !strings.Contains(ledgerLine, "|STATUS:published|") {
		t.Fatalf("ledger = %q", ledgerLine)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/status", port))
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	var status map[string]struct {
		PublishedToday int `json:"published_today"`
		Quota          int `json:"quota"`
	}
	err = json.NewDecoder(resp.Body).Decode(&status)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status["en"].PublishedToday != 1 || status["en"].Quota != 1 {
		t.Fatalf("status = %+v", status)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopSignal); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatalf("Done not closed after Stop")
	}
	if hook.count() != 1 {
		t.Fatalf("quota of 1 exceeded: %d calls", hook.count())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")
	if err := os.WriteFile(p, []byte(`{"webhook":{"url":""}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgm := config.NewConfigManager(p)
	cfgm.SetLookup(func(string) (string, bool) { return "", false })
	if _, err := New(cfgm); err == nil || !strings.Contains(err.Error(), "webhook.url") {
		t.Fatalf("New err = %v", err)
	}
}

func TestMappings(t *testing.T) {
	cfg := &config.Config{Webhook: config.WebhookConfig{URL: "https://hook.example"}}
	cfg.ApplyDefaults()

	d, err := mapDeliveryConfig(cfg)
	if err != nil || d.RetryWait != 5*time.Second || d.Retries != 3 || d.RequestTimeout != 30*time.Second {
		t.Fatalf("delivery = %+v, %v", d, err)
	}
	w, err := mapWorkerConfig(cfg)
	if err != nil || w.IntervalMin != 170 || w.QuotaWait != time.Hour || w.IdleWait != 5*time.Minute {
		t.Fatalf("worker = %+v, %v", w, err)
	}
	k, err := mapKeepaliveConfig(cfg)
	if err != nil || k.Interval != 540*time.Second || k.URL != "http://127.0.0.1:5000/health" || !k.Systemd {
		t.Fatalf("keepalive = %+v, %v", k, err)
	}
	h, err := mapHTTPConfig(cfg)
	if err != nil || h.Addr != "0.0.0.0:5000" {
		t.Fatalf("http = %+v, %v", h, err)
	}
	if n, err := mapNotifierConfig(cfg); err != nil || n.Enabled {
		t.Fatalf("notifier = %+v, %v", n, err)
	}
	if _, enabled, err := mapStorageConfig(cfg); enabled || err != nil {
		t.Fatalf("storage enabled = %v, %v", enabled, err)
	}
	cfg.Storage = &config.StorageConfig{Driver: "sqlite3"}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Fatalf("sqlite without path should fail")
	}
}
