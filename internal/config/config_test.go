package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "publishbot/pkg/logx"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()

	if c.Schedule.QuotaMin != 10 || c.Schedule.QuotaMax != 15 {
		t.Fatalf("quota = %d..%d, want 10..15", c.Schedule.QuotaMin, c.Schedule.QuotaMax)
	}
	if c.Schedule.IntervalMin != 170 || c.Schedule.IntervalMax != 190 {
		t.Fatalf("interval = %d..%d, want 170..190", c.Schedule.IntervalMin, c.Schedule.IntervalMax)
	}
	if c.Webhook.Retries != 3 || c.Webhook.RetryWait != "5s" {
		t.Fatalf("webhook retries = %d wait %q", c.Webhook.Retries, c.Webhook.RetryWait)
	}
	if c.HTTP.Port != 5000 || c.HTTP.Host != "0.0.0.0" {
		t.Fatalf("http = %s:%d", c.HTTP.Host, c.HTTP.Port)
	}
	if c.Keepalive.Interval != "540s" {
		t.Fatalf("keepalive = %q, want 540s", c.Keepalive.Interval)
	}
	if len(c.Languages) != 1 || c.Languages[0].Code != "en" {
		t.Fatalf("languages = %+v", c.Languages)
	}
	en := c.Languages[0]
	if en.ArticlesFile != DefaultEnglishArticles {
		t.Fatalf("articles file = %q", en.ArticlesFile)
	}
	if want := filepath.Join(DefaultDataDir, "log_en.txt"); en.LedgerFile != want {
		t.Fatalf("ledger file = %q, want %q", en.LedgerFile, want)
	}

	before := c
	c.ApplyDefaults()
	if c.Webhook != before.Webhook || c.Schedule != before.Schedule {
		t.Fatalf("ApplyDefaults is not idempotent")
	}
}

func TestApplyDefaultsKeepsPartialBounds(t *testing.T) {
	c := Config{Schedule: ScheduleConfig{QuotaMin: 3}}
	c.ApplyDefaults()
	if c.Schedule.QuotaMin != 3 || c.Schedule.QuotaMax != DefaultQuotaMax {
		t.Fatalf("quota = %d..%d", c.Schedule.QuotaMin, c.Schedule.QuotaMax)
	}
}

func TestApplyEnv(t *testing.T) {
	c := Config{Notifier: &NotifierConfig{}}
	err := c.ApplyEnv(envMap(map[string]string{
		"PIPEDREAM_WEBHOOK":  " https://hook.example/abc ",
		"WEBHOOK_URL":        "https://ignored.example",
		"QUOTA_MIN":          "2",
		"QUOTA_MAX":          "4",
		"INTERVAL_MIN":       "1",
		"INTERVAL_MAX":       "3",
		"HTTP_RETRIES":       "5",
		"HTTP_RETRY_WAIT":    "7",
		"KEEPALIVE_INTERVAL": "60",
		"PORT":               "8080",
		"LOG_LEVEL":          "DEBUG",
		"TELEGRAM_TOKEN":     "secret",
		"DATA_DIR":           "",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if c.Webhook.URL != "https://hook.example/abc" {
		t.Fatalf("url = %q", c.Webhook.URL)
	}
	if c.Schedule != (ScheduleConfig{QuotaMin: 2, QuotaMax: 4, IntervalMin: 1, IntervalMax: 3}) {
		t.Fatalf("schedule = %+v", c.Schedule)
	}
	if c.Webhook.Retries != 5 || c.Webhook.RetryWait != "7s" {
		t.Fatalf("webhook = %+v", c.Webhook)
	}
	if c.Keepalive.Interval != "60s" || c.HTTP.Port != 8080 {
		t.Fatalf("keepalive %q port %d", c.Keepalive.Interval, c.HTTP.Port)
	}
	if c.Logging.Level != "debug" {
		t.Fatalf("level = %q", c.Logging.Level)
	}
	if c.Notifier.Telegram.Token != "secret" {
		t.Fatalf("token not applied")
	}
	if c.DataDir != "" {
		t.Fatalf("empty DATA_DIR should be ignored, got %q", c.DataDir)
	}
}

func TestApplyEnvFallbackAndErrors(t *testing.T) {
	var c Config
	err := c.ApplyEnv(envMap(map[string]string{
		"WEBHOOK_URL":     "https://fallback.example",
		"QUOTA_MIN":       "ten",
		"HTTP_RETRY_WAIT": "-1",
	}))
	if c.Webhook.URL != "https://fallback.example" {
		t.Fatalf("url = %q", c.Webhook.URL)
	}
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, key := range []string{"QUOTA_MIN", "HTTP_RETRY_WAIT"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not mention %s", err, key)
		}
	}
}

func validConfig() *Config {
	c := &Config{Webhook: WebhookConfig{URL: "https://hook.example/x"}}
	c.ApplyDefaults()
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"ok", func(c *Config) {}, ""},
		{"missing webhook", func(c *Config) { c.Webhook.URL = "" }, "webhook.url is required"},
		{"relative webhook", func(c *Config) { c.Webhook.URL = "/hook" }, "absolute http(s)"},
		{"quota inverted", func(c *Config) { c.Schedule.QuotaMin, c.Schedule.QuotaMax = 5, 2 }, "quota_min (5) > quota_max (2)"},
		{"quota negative", func(c *Config) { c.Schedule.QuotaMin = -1 }, "quota bounds must be positive"},
		{"interval inverted", func(c *Config) { c.Schedule.IntervalMin = 200 }, "interval_min (200) > interval_max (190)"},
		{"bad duration", func(c *Config) { c.Schedule.IdleWait = "soon" }, "schedule.idle_wait"},
		{"duplicate language", func(c *Config) { c.Languages = append(c.Languages, c.Languages[0]) }, `duplicate language code "en"`},
		{"bad dir", func(c *Config) { c.Languages[0].Dir = "up" }, "ltr or rtl"},
		{"port", func(c *Config) { c.HTTP.Port = 70000 }, "out of range"},
		{"notifier without token", func(c *Config) {
			c.Notifier = &NotifierConfig{Enabled: true, Telegram: TelegramConfig{ChatID: 1}}
		}, "notifier.telegram.token"},
		{"notifier disabled", func(c *Config) { c.Notifier = &NotifierConfig{} }, ""},
		{"unknown storage", func(c *Config) { c.Storage = &StorageConfig{Driver: "redis", Path: "x"} }, `storage.driver "redis"`},
		{"storage without path", func(c *Config) { c.Storage = &StorageConfig{Driver: "file"} }, "storage.path is required"},
		{"storage none", func(c *Config) { c.Storage = &StorageConfig{Driver: "none"} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestParseJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	noEnv := envMap(nil)

	jsonPath := writeFile(t, dir, "config.json", `{
		"webhook": {"url": "https://hook.example/j"},
		"schedule": {"quota_min": 1, "quota_max": 2},
		"languages": [{"code": "AR", "dir": "rtl"}]
	}`)
	m := NewConfigManager(jsonPath)
	m.SetLookup(noEnv)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	if cfg.Schedule.QuotaMax != 2 || cfg.Schedule.IntervalMin != DefaultIntervalMin {
		t.Fatalf("schedule = %+v", cfg.Schedule)
	}
	if cfg.Languages[0].Code != "ar" || cfg.Languages[0].Dir != "rtl" {
		t.Fatalf("language = %+v", cfg.Languages[0])
	}
	if m.Get() != cfg {
		t.Fatalf("Load did not commit")
	}

	yamlPath := writeFile(t, dir, "config.yaml", "webhook:\n  url: https://hook.example/y\nhttp:\n  port: 9000\n")
	m = NewConfigManager(yamlPath)
	m.SetLookup(noEnv)
	cfg, err = m.Load()
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if cfg.HTTP.Port != 9000 || cfg.Webhook.URL != "https://hook.example/y" {
		t.Fatalf("yaml cfg = %+v", cfg)
	}
}

func TestParseStrict(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"unknown.json":  `{"webhook": {"url": "https://x.example"}, "bogus": 1}`,
		"trailing.json": `{"webhook": {"url": "https://x.example"}} {}`,
		"unknown.yaml":  "webhook:\n  url: https://x.example\n  extra: true\n",
	} {
		m := NewConfigManager(writeFile(t, dir, name, body))
		m.SetLookup(envMap(nil))
		if _, err := m.Parse(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseMissingFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "absent.json")
	m := NewConfigManager(p)
	m.SetLookup(envMap(map[string]string{"PIPEDREAM_WEBHOOK": "https://hook.example"}))
	if _, err := m.Parse(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Parse() err = %v, want not-exist", err)
	}

	m.SetOptional(true)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("optional Load: %v", err)
	}
	if cfg.Webhook.URL != "https://hook.example" {
		t.Fatalf("url = %q", cfg.Webhook.URL)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.json", `{"webhook":{"url":"https://file.example"},"schedule":{"quota_min":1,"quota_max":1}}`)
	m := NewConfigManager(p)
	m.SetLookup(envMap(map[string]string{"PIPEDREAM_WEBHOOK": "https://env.example", "QUOTA_MAX": "9"}))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Webhook.URL != "https://env.example" || cfg.Schedule.QuotaMax != 9 || cfg.Schedule.QuotaMin != 1 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "c.json", `{"webhook":{"url":"https://a.example"}}`)
	m := NewConfigManager(p)
	m.SetLookup(envMap(nil))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	ctx := context.Background()

	if ok, err := m.Reload(ctx); ok || err != nil {
		t.Fatalf("Reload unchanged = %v, %v", ok, err)
	}

	writeFile(t, dir, "c.json", `{"webhook":{"url":"https://b.example"}}`)
	if ok, err := m.Reload(ctx); !ok || err != nil {
		t.Fatalf("Reload changed = %v, %v", ok, err)
	}
	select {
	case got := <-ch:
		if got.Webhook.URL != "https://b.example" {
			t.Fatalf("published url = %q", got.Webhook.URL)
		}
	case <-time.After(time.Second):
		t.Fatalf("no config published")
	}

	writeFile(t, dir, "c.json", `{"webhook":{"url":"https://b.example"},"schedule":{"quota_min":9,"quota_max":1}}`)
	if ok, err := m.Reload(ctx); ok || err == nil {
		t.Fatalf("invalid reload = %v, %v", ok, err)
	}
	if m.Get().Schedule.QuotaMin != DefaultQuotaMin {
		t.Fatalf("invalid config was committed")
	}
}

func TestValidatorHook(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.json", `{"webhook":{"url":"https://a.example"}}`)
	m := NewConfigManager(p)
	m.SetLookup(envMap(nil))
	m.SetValidator(func(ctx context.Context, cfg *Config) error { return errors.New("nope") })
	if _, err := m.Load(); err == nil || err.Error() != "nope" {
		t.Fatalf("Load err = %v, want nope", err)
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	m := NewConfigManager("unused.json")
	ch := m.Subscribe(1)
	a, b := &Config{DataDir: "a"}, &Config{DataDir: "b"}
	m.publish(a)
	m.publish(b)
	if got := <-ch; got != b {
		t.Fatalf("got %q, want newest", got.DataDir)
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed after Unsubscribe")
	}
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	oldCfg := validConfig()
	newCfg := validConfig()
	newCfg.Webhook.URL = "https://hook.example/secret-path"
	newCfg.Schedule.QuotaMax = 20
	newCfg.Notifier = &NotifierConfig{Enabled: true, Telegram: TelegramConfig{Token: "123:ABC", ChatID: 5}}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"notifier", "schedule", "webhook"}
	if strings.Join(changed, ",") != strings.Join(want, ",") {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	var buf bytes.Buffer
	logx.NewWriter(&buf, "debug").Info("config reloaded", attrs...)
	if out := buf.String(); strings.Contains(out, "secret-path") || strings.Contains(out, "123:ABC") {
		t.Fatalf("attrs leak secret: %s", out)
	} else if !strings.Contains(out, "hook.example") {
		t.Fatalf("webhook host missing: %s", out)
	}

	if changed, _ := SummarizeConfigChange(oldCfg, validConfig()); len(changed) != 0 {
		t.Fatalf("identical configs changed = %v", changed)
	}
}
