// Package storage keeps the bot's optional side records: an audit journal of
// publish attempts and article additions, and the notifier's dedup state so
// repeated alerts stay suppressed across restarts.
//
// The publish ledger is NOT stored here; it lives in the per-language ledger
// files and stays the only source of truth for what was published.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config selects a backend.
//
// Driver values:
//   - "file": JSON Lines audit + dedup snapshot/journal next to Path
//   - "sqlite": SQLite database at Path (build tag "sqlite")
//
// Empty or "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only
}

// Audit actions.
const (
	ActionPublishSent   = "publish.sent"
	ActionPublishFailed = "publish.failed"
	ActionArticleAdd    = "article.add"
)

// AuditEntry is one journal row. Keep it flat and schema-stable.
type AuditEntry struct {
	At        time.Time `json:"at"`
	Lang      string    `json:"lang"`
	Action    string    `json:"action"`
	ArticleID int       `json:"article_id"`
	Title     string    `json:"title,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to n entries, newest first.
	RecentAudit(ctx context.Context, n int) ([]AuditEntry, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}
