// Package httpapi serves the bot's small HTTP surface: health and status for
// uptime checks, article listing and appends, HTML previews and metrics.
package httpapi

import (
	"time"

	"publishbot/internal/article"
	"publishbot/internal/ledger"
	"publishbot/internal/render"
	"publishbot/internal/storage"
	logx "publishbot/pkg/logx"
)

const (
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 60 * time.Second

	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "0.0.0.0:5000"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

// Lang is one language's data as seen by the handlers.
type Lang struct {
	Articles *article.Repository
	Ledger   *ledger.Ledger
	// Quota reports the worker's daily quota; nil means unknown.
	Quota func() int
}

type Deps struct {
	Registry *article.Registry
	Langs    map[string]Lang
	Renderer *render.Renderer
	Audit    storage.Store // optional
	// Health adds runtime details (task snapshots, keepalive stats) to /health.
	Health func() map[string]any
	Log    logx.Logger
}

// LangStatus is the /status entry for one language.
type LangStatus struct {
	Label          string `json:"label"`
	PublishedToday int    `json:"published_today"`
	Pending        int    `json:"pending"`
	Total          int    `json:"total"`
	Quota          int    `json:"quota,omitempty"`
}

// ArticleView is an article plus its publish state.
type ArticleView struct {
	article.Article
	Published bool `json:"published"`
}
