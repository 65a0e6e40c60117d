package config

import (
	"path/filepath"
	"strings"
)

const (
	DefaultDataDir          = "./data"
	DefaultQuotaMin         = 10
	DefaultQuotaMax         = 15
	DefaultIntervalMin      = 170
	DefaultIntervalMax      = 190
	DefaultRetries          = 3
	DefaultRetryWait        = "5s"
	DefaultRequestTimeout   = "30s"
	DefaultQuotaWait        = "1h"
	DefaultIdleWait         = "5m"
	DefaultKeepalive        = "540s"
	DefaultPort             = 5000
	DefaultHost             = "0.0.0.0"
	DefaultSource           = "publishbot"
	DefaultEnglishArticles  = "cooking_articles_600.json"
	DefaultLogFileName      = "system.log"
	DefaultLedgerFilePrefix = "log_"
)

// DefaultLanguages is the registry used when the config names none.
func DefaultLanguages() []LanguageConfig {
	return []LanguageConfig{{
		Code:           "en",
		Label:          "English",
		Dir:            "ltr",
		ArticlesFile:   DefaultEnglishArticles,
		Sections:       []string{"Ingredients", "Instructions", "Tips", "Serving"},
		TagPrefix:      "🍳",
		PublishedLabel: "Published on",
	}}
}

// ApplyDefaults fills every unset field. It is idempotent.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}

	w := &c.Webhook
	if w.Source == "" {
		w.Source = DefaultSource
	}
	if w.Retries == 0 {
		w.Retries = DefaultRetries
	}
	if w.RetryWait == "" {
		w.RetryWait = DefaultRetryWait
	}
	if w.RequestTimeout == "" {
		w.RequestTimeout = DefaultRequestTimeout
	}

	s := &c.Schedule
	if s.QuotaMin == 0 {
		s.QuotaMin = DefaultQuotaMin
	}
	if s.QuotaMax == 0 {
		s.QuotaMax = DefaultQuotaMax
	}
	if s.IntervalMin == 0 {
		s.IntervalMin = DefaultIntervalMin
	}
	if s.IntervalMax == 0 {
		s.IntervalMax = DefaultIntervalMax
	}
	if s.QuotaWait == "" {
		s.QuotaWait = DefaultQuotaWait
	}
	if s.IdleWait == "" {
		s.IdleWait = DefaultIdleWait
	}

	if len(c.Languages) == 0 {
		c.Languages = DefaultLanguages()
	}
	for i := range c.Languages {
		l := &c.Languages[i]
		l.Code = strings.ToLower(strings.TrimSpace(l.Code))
		if l.Dir == "" {
			l.Dir = "ltr"
		}
		if l.Label == "" {
			l.Label = strings.ToUpper(l.Code)
		}
		if l.ArticlesFile == "" {
			l.ArticlesFile = filepath.Join(c.DataDir, "articles_"+l.Code+".json")
		}
		if l.LedgerFile == "" {
			l.LedgerFile = filepath.Join(c.DataDir, DefaultLedgerFilePrefix+l.Code+".txt")
		}
		if l.PublishedLabel == "" {
			l.PublishedLabel = "Published on"
		}
	}

	if c.HTTP.Host == "" {
		c.HTTP.Host = DefaultHost
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultPort
	}

	if c.Keepalive.Interval == "" {
		c.Keepalive.Interval = DefaultKeepalive
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File.Enabled && c.Logging.File.Path == "" {
		c.Logging.File.Path = filepath.Join(c.DataDir, DefaultLogFileName)
	}
}

// SystemdEnabled reports whether sd_notify messages should be sent.
func (k KeepaliveConfig) SystemdEnabled() bool { return k.Systemd == nil || *k.Systemd }
