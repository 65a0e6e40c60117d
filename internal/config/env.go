package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. ENV_FILE names a single file;
// otherwise .env.local then .env are tried. Missing files are skipped.
func LoadDotEnv() ([]string, error) {
	files := []string{".env.local", ".env"}
	if f := strings.TrimSpace(os.Getenv("ENV_FILE")); f != "" {
		files = []string{f}
	}
	var loaded []string
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables on c. Empty values are ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	// Seconds-valued variables become duration strings.
	setSeconds := func(key string, dst *string) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				errs = append(errs, fmt.Errorf("%s: %q is not a non-negative number of seconds", key, v))
				return
			}
			*dst = strconv.Itoa(n) + "s"
		}
	}

	if v, ok := get("PIPEDREAM_WEBHOOK"); ok {
		c.Webhook.URL = v
	} else if v, ok := get("WEBHOOK_URL"); ok {
		c.Webhook.URL = v
	}
	setInt("QUOTA_MIN", &c.Schedule.QuotaMin)
	setInt("QUOTA_MAX", &c.Schedule.QuotaMax)
	setInt("INTERVAL_MIN", &c.Schedule.IntervalMin)
	setInt("INTERVAL_MAX", &c.Schedule.IntervalMax)
	setInt("HTTP_RETRIES", &c.Webhook.Retries)
	setSeconds("HTTP_RETRY_WAIT", &c.Webhook.RetryWait)
	setSeconds("KEEPALIVE_INTERVAL", &c.Keepalive.Interval)
	setInt("PORT", &c.HTTP.Port)
	if v, ok := get("DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := get("TELEGRAM_TOKEN"); ok && c.Notifier != nil {
		c.Notifier.Telegram.Token = v
	}
	return errors.Join(errs...)
}
