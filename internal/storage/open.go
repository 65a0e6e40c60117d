package storage

import (
	"context"
	"fmt"
	"strings"

	logx "publishbot/pkg/logx"
)

// Open initializes the configured store. It returns (nil, nil) when storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := NormalizeDriver(cfg.Driver)
	if driver == "" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		fs, err := openFile(cfg, log)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

// NormalizeDriver maps aliases to a canonical driver name; "" means disabled.
func NormalizeDriver(d string) string {
	switch d = strings.ToLower(strings.TrimSpace(d)); d {
	case "", "none", "off":
		return ""
	case "sqlite3":
		return "sqlite"
	default:
		return d
	}
}

// KnownDriver reports whether d names a supported backend (or disabled).
func KnownDriver(d string) bool {
	switch NormalizeDriver(d) {
	case "", "file", "sqlite":
		return true
	}
	return false
}

// Audit appends e and logs instead of failing; audit never blocks publishing.
func Audit(ctx context.Context, s Store, log logx.Logger, e AuditEntry) {
	if s == nil {
		return
	}
	if err := s.AppendAudit(ctx, e); err != nil {
		log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}
