package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"publishbot/internal/storage"
)

// Validate checks a defaulted config. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if u := strings.TrimSpace(c.Webhook.URL); u == "" {
		add("webhook.url is required (or set PIPEDREAM_WEBHOOK)")
	} else if pu, err := url.Parse(u); err != nil || (pu.Scheme != "http" && pu.Scheme != "https") || pu.Host == "" {
		add("webhook.url must be an absolute http(s) URL")
	}
	if c.Webhook.Retries < 1 {
		add("webhook.retries must be >= 1")
	}
	if c.Webhook.RatePerMinute < 0 {
		add("webhook.rate_per_minute must be >= 0")
	}
	for path, raw := range map[string]string{
		"webhook.retry_wait":      c.Webhook.RetryWait,
		"webhook.request_timeout": c.Webhook.RequestTimeout,
		"schedule.quota_wait":     c.Schedule.QuotaWait,
		"schedule.idle_wait":      c.Schedule.IdleWait,
		"keepalive.interval":      c.Keepalive.Interval,
		"http.read_timeout":       c.HTTP.ReadTimeout,
		"http.write_timeout":      c.HTTP.WriteTimeout,
		"http.idle_timeout":       c.HTTP.IdleTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	s := c.Schedule
	if s.QuotaMin < 1 || s.QuotaMax < 1 {
		add("schedule quota bounds must be positive (got %d..%d)", s.QuotaMin, s.QuotaMax)
	} else if s.QuotaMin > s.QuotaMax {
		add("schedule.quota_min (%d) > quota_max (%d)", s.QuotaMin, s.QuotaMax)
	}
	if s.IntervalMin < 1 || s.IntervalMax < 1 {
		add("schedule interval bounds must be positive minutes (got %d..%d)", s.IntervalMin, s.IntervalMax)
	} else if s.IntervalMin > s.IntervalMax {
		add("schedule.interval_min (%d) > interval_max (%d)", s.IntervalMin, s.IntervalMax)
	}

	if len(c.Languages) == 0 {
		add("at least one language is required")
	}
	seen := map[string]bool{}
	for i, l := range c.Languages {
		switch {
		case l.Code == "":
			add("languages[%d].code is required", i)
		case seen[l.Code]:
			add("duplicate language code %q", l.Code)
		}
		seen[l.Code] = true
		if l.Dir != "ltr" && l.Dir != "rtl" {
			add("languages[%d].dir must be ltr or rtl", i)
		}
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		add("http.port %d out of range", c.HTTP.Port)
	}

	if n := c.Notifier; n != nil && n.Enabled {
		if strings.TrimSpace(n.Telegram.Token) == "" {
			add("notifier.telegram.token is required when the notifier is enabled")
		}
		if n.Telegram.ChatID == 0 {
			add("notifier.telegram.chat_id is required when the notifier is enabled")
		}
		for path, raw := range map[string]string{
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
			"notifier.dedup_window":    n.DedupWindow,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if st := c.Storage; st != nil {
		if !storage.KnownDriver(st.Driver) {
			add("storage.driver %q is not supported (file, sqlite, none)", st.Driver)
		} else if storage.NormalizeDriver(st.Driver) != "" && strings.TrimSpace(st.Path) == "" {
			add("storage.path is required for driver %q", st.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
