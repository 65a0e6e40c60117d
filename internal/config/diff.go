package config

import (
	"net/url"
	"reflect"
	"sort"
	"strings"

	logx "publishbot/pkg/logx"
)

// SummarizeConfigChange returns a sorted list of changed sections and safe
// structured attrs for logging. Secrets (webhook URL, bot token) are reported
// only as *_set flags.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)

	if !reflect.DeepEqual(oldCfg.Webhook, newCfg.Webhook) {
		changed = append(changed, "webhook")
		attrs = append(attrs,
			logx.Bool("webhook.url_set", strings.TrimSpace(newCfg.Webhook.URL) != ""),
			logx.Bool("webhook.url_changed", oldCfg.Webhook.URL != newCfg.Webhook.URL),
			logx.String("webhook.host", webhookHost(newCfg.Webhook.URL)),
			logx.Int("webhook.retries", newCfg.Webhook.Retries),
			logx.String("webhook.retry_wait", newCfg.Webhook.RetryWait),
			logx.Int("webhook.rate_per_minute", newCfg.Webhook.RatePerMinute),
		)
	}

	if oldCfg.Schedule != newCfg.Schedule {
		s := newCfg.Schedule
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.Int("schedule.quota_min", s.QuotaMin),
			logx.Int("schedule.quota_max", s.QuotaMax),
			logx.Int("schedule.interval_min", s.IntervalMin),
			logx.Int("schedule.interval_max", s.IntervalMax),
			logx.String("schedule.quota_wait", s.QuotaWait),
			logx.String("schedule.idle_wait", s.IdleWait),
		)
	}

	if !reflect.DeepEqual(oldCfg.Languages, newCfg.Languages) || oldCfg.DataDir != newCfg.DataDir {
		changed = append(changed, "languages")
		attrs = append(attrs, logx.Int("languages.count", len(newCfg.Languages)))
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.String("http.host", newCfg.HTTP.Host),
			logx.Int("http.port", newCfg.HTTP.Port),
		)
	}

	if oldCfg.Keepalive.Disabled != newCfg.Keepalive.Disabled ||
		oldCfg.Keepalive.Interval != newCfg.Keepalive.Interval ||
		oldCfg.Keepalive.SystemdEnabled() != newCfg.Keepalive.SystemdEnabled() {
		changed = append(changed, "keepalive")
		attrs = append(attrs,
			logx.Bool("keepalive.disabled", newCfg.Keepalive.Disabled),
			logx.String("keepalive.interval", newCfg.Keepalive.Interval),
			logx.Bool("keepalive.systemd", newCfg.Keepalive.SystemdEnabled()),
		)
	}

	// Nil means disabled.
	oldN, newN := derefNotifier(oldCfg.Notifier), derefNotifier(newCfg.Notifier)
	if !reflect.DeepEqual(oldN, newN) {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Bool("notifier.notify_on_publish", newN.NotifyOnPublish),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.queue_size", newN.QueueSize),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Bool("notifier.persist_dedup", newN.PersistDedup),
			logx.Bool("notifier.token_set", strings.TrimSpace(newN.Telegram.Token) != ""),
			logx.Bool("notifier.chat_set", newN.Telegram.ChatID != 0),
		)
	}

	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if s := oldCfg.Storage; s != nil {
		oDriver, oBusy, oPathSet = strings.TrimSpace(s.Driver), strings.TrimSpace(s.BusyTimeout), strings.TrimSpace(s.Path) != ""
	}
	if s := newCfg.Storage; s != nil {
		nDriver, nBusy, nPathSet = strings.TrimSpace(s.Driver), strings.TrimSpace(s.BusyTimeout), strings.TrimSpace(s.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefNotifier(n *NotifierConfig) NotifierConfig {
	if n == nil {
		return NotifierConfig{}
	}
	return *n
}

func webhookHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Host
}
