package config

// Config is the on-disk configuration (JSON or YAML). Environment variables
// and defaults are layered on top by ConfigManager.Parse.
//
// All durations are Go duration strings ("5s", "1h").
type Config struct {
	DataDir   string           `json:"data_dir,omitempty"`
	Webhook   WebhookConfig    `json:"webhook"`
	Schedule  ScheduleConfig   `json:"schedule"`
	Languages []LanguageConfig `json:"languages,omitempty"`
	HTTP      HTTPConfig       `json:"http"`
	Keepalive KeepaliveConfig  `json:"keepalive"`
	Logging   LoggingConfig    `json:"logging"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

// WebhookConfig controls outbound delivery.
//
// Env: PIPEDREAM_WEBHOOK (or WEBHOOK_URL), HTTP_RETRIES, HTTP_RETRY_WAIT (seconds).
type WebhookConfig struct {
	URL            string `json:"url"`
	Source         string `json:"source,omitempty"`
	Retries        int    `json:"retries,omitempty"`
	RetryWait      string `json:"retry_wait,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
	RatePerMinute  int    `json:"rate_per_minute,omitempty"`
}

// ScheduleConfig holds the per-worker quota and pacing.
//
// Env: QUOTA_MIN, QUOTA_MAX, INTERVAL_MIN, INTERVAL_MAX (minutes).
type ScheduleConfig struct {
	QuotaMin    int    `json:"quota_min,omitempty"`
	QuotaMax    int    `json:"quota_max,omitempty"`
	IntervalMin int    `json:"interval_min,omitempty"`
	IntervalMax int    `json:"interval_max,omitempty"`
	QuotaWait   string `json:"quota_wait,omitempty"`
	IdleWait    string `json:"idle_wait,omitempty"`
}

type LanguageConfig struct {
	Code           string   `json:"code"`
	Label          string   `json:"label,omitempty"`
	Dir            string   `json:"dir,omitempty"`
	ArticlesFile   string   `json:"articles_file,omitempty"`
	LedgerFile     string   `json:"ledger_file,omitempty"`
	SeedFile       string   `json:"seed_file,omitempty"`
	Sections       []string `json:"sections,omitempty"`
	TagPrefix      string   `json:"tag_prefix,omitempty"`
	PublishedLabel string   `json:"published_label,omitempty"`
}

// HTTPConfig controls the status/preview server. Env: PORT.
type HTTPConfig struct {
	Host         string `json:"host,omitempty"`
	Port         int    `json:"port,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// KeepaliveConfig controls the self-ping and systemd notifications.
// Env: KEEPALIVE_INTERVAL (seconds).
type KeepaliveConfig struct {
	Disabled bool   `json:"disabled,omitempty"`
	Interval string `json:"interval,omitempty"`
	Systemd  *bool  `json:"systemd,omitempty"` // default true; no-op without NOTIFY_SOCKET
}

// LoggingConfig; env LOG_LEVEL overrides Level.
type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// NotifierConfig controls operator alerts. Omitted means disabled.
type NotifierConfig struct {
	Enabled         bool           `json:"enabled"`
	NotifyOnPublish bool           `json:"notify_on_publish,omitempty"`
	Workers         int            `json:"workers,omitempty"`
	QueueSize       int            `json:"queue_size,omitempty"`
	RatePerSec      int            `json:"rate_per_sec,omitempty"`
	RetryMax        int            `json:"retry_max,omitempty"`
	RetryBase       string         `json:"retry_base,omitempty"`
	RetryMaxDelay   string         `json:"retry_max_delay,omitempty"`
	DedupWindow     string         `json:"dedup_window,omitempty"`
	DedupMaxEntries int            `json:"dedup_max_entries,omitempty"`
	PersistDedup    bool           `json:"persist_dedup,omitempty"`
	Telegram        TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Token    string `json:"token"` // never logged
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	APIURL   string `json:"api_url,omitempty"`
}

// StorageConfig controls the optional audit journal.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/publishbot" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
