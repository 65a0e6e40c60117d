package app

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"publishbot/internal/article"
	"publishbot/internal/config"
	"publishbot/internal/delivery"
	"publishbot/internal/httpapi"
	"publishbot/internal/keepalive"
	"publishbot/internal/notifier"
	"publishbot/internal/storage"
	kit "publishbot/internal/transport"
	"publishbot/internal/transport/telegram"
	"publishbot/internal/worker"
	logx "publishbot/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapLanguages(cfg *config.Config) []article.Language {
	out := make([]article.Language, 0, len(cfg.Languages))
	for _, l := range cfg.Languages {
		out = append(out, article.Language{
			Code:           l.Code,
			Label:          l.Label,
			Dir:            l.Dir,
			ArticlesFile:   l.ArticlesFile,
			LedgerFile:     l.LedgerFile,
			SeedFile:       l.SeedFile,
			Sections:       append([]string(nil), l.Sections...),
			TagPrefix:      l.TagPrefix,
			PublishedLabel: l.PublishedLabel,
		})
	}
	return out
}

func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	w := cfg.Webhook
	wait, err := config.ParseDurationOrDefault("webhook.retry_wait", w.RetryWait, delivery.DefaultRetryWait)
	if err != nil {
		return delivery.Config{}, err
	}
	timeout, err := config.ParseDurationOrDefault("webhook.request_timeout", w.RequestTimeout, delivery.DefaultRequestTimeout)
	if err != nil {
		return delivery.Config{}, err
	}
	return delivery.Config{
		URL:            strings.TrimSpace(w.URL),
		Source:         w.Source,
		Retries:        w.Retries,
		RetryWait:      wait,
		RequestTimeout: timeout,
		RatePerMinute:  w.RatePerMinute,
	}, nil
}

func mapWorkerConfig(cfg *config.Config) (worker.Config, error) {
	s := cfg.Schedule
	quotaWait, err := config.ParseDurationOrDefault("schedule.quota_wait", s.QuotaWait, worker.DefaultQuotaWait)
	if err != nil {
		return worker.Config{}, err
	}
	idleWait, err := config.ParseDurationOrDefault("schedule.idle_wait", s.IdleWait, worker.DefaultIdleWait)
	if err != nil {
		return worker.Config{}, err
	}
	return worker.Config{
		QuotaMin: s.QuotaMin,
		QuotaMax: s.QuotaMax,
		Timing: worker.Timing{
			IntervalMin: s.IntervalMin,
			IntervalMax: s.IntervalMax,
			QuotaWait:   quotaWait,
			IdleWait:    idleWait,
		},
	}, nil
}

func mapHTTPConfig(cfg *config.Config) (httpapi.Config, error) {
	h := cfg.HTTP
	read, err := config.ParseDurationOrDefault("http.read_timeout", h.ReadTimeout, httpapi.DefaultReadTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("http.write_timeout", h.WriteTimeout, httpapi.DefaultWriteTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("http.idle_timeout", h.IdleTimeout, httpapi.DefaultIdleTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Addr:         net.JoinHostPort(h.Host, strconv.Itoa(h.Port)),
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, nil
}

func mapKeepaliveConfig(cfg *config.Config) (keepalive.Config, error) {
	every, err := config.ParseDurationOrDefault("keepalive.interval", cfg.Keepalive.Interval, keepalive.DefaultInterval)
	if err != nil {
		return keepalive.Config{}, err
	}
	return keepalive.Config{
		Disabled: cfg.Keepalive.Disabled,
		URL:      "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.HTTP.Port)) + "/health",
		Interval: every,
		Timeout:  keepalive.DefaultTimeout,
		Systemd:  cfg.Keepalive.SystemdEnabled(),
	}, nil
}

// mapNotifierConfig returns a disabled config when the section is omitted.
// Zero limits are defaulted by notifier.Service.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{}, nil
	}
	retryBase, err := config.ParseDurationOrDefault("notifier.retry_base", n.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMax, err := config.ParseDurationOrDefault("notifier.retry_max_delay", n.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("notifier.dedup_window", n.DedupWindow, time.Minute)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMax,
		DedupWindow:     window,
		DedupMaxEntries: n.DedupMaxEntries,
		PersistDedup:    n.PersistDedup,
	}, nil
}

func mapBridgeConfig(cfg *config.Config) notifier.BridgeConfig {
	if cfg.Notifier == nil {
		return notifier.BridgeConfig{Channel: "telegram"}
	}
	return notifier.BridgeConfig{
		Channel: "telegram",
		Target: kit.ChatTarget{
			ChatID:   cfg.Notifier.Telegram.ChatID,
			ThreadID: cfg.Notifier.Telegram.ThreadID,
		},
		NotifyOnPublish: cfg.Notifier.NotifyOnPublish,
	}
}

func mapTelegramConfig(cfg *config.Config) telegram.Config {
	if cfg.Notifier == nil {
		return telegram.Config{}
	}
	return telegram.Config{
		Token:  strings.TrimSpace(cfg.Notifier.Telegram.Token),
		APIURL: strings.TrimSpace(cfg.Notifier.Telegram.APIURL),
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := storage.NormalizeDriver(sc.Driver)
	if driver == "" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
