package worker

import (
	"context"
	"time"

	"publishbot/internal/article"
)

const (
	DefaultQuotaWait = time.Hour
	DefaultIdleWait  = 5 * time.Minute
)

// Timing is the hot-reloadable part of the worker config.
type Timing struct {
	IntervalMin int // minutes, inclusive
	IntervalMax int // minutes, inclusive
	QuotaWait   time.Duration
	IdleWait    time.Duration
}

type Config struct {
	QuotaMin int
	QuotaMax int
	Timing
}

// Outcome is the result of one loop iteration.
type Outcome int

const (
	OutcomeError Outcome = iota
	OutcomeQuotaReached
	OutcomeNoPending
	OutcomePublished
	OutcomeDeliveryFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQuotaReached:
		return "quota_reached"
	case OutcomeNoPending:
		return "no_pending"
	case OutcomePublished:
		return "published"
	case OutcomeDeliveryFailed:
		return "delivery_failed"
	default:
		return "error"
	}
}

type Ledger interface {
	CountToday() (int, error)
	PublishedIDs() (map[int]struct{}, error)
	MarkPublished(a article.Article) error
}

type Articles interface {
	List() ([]article.Article, error)
}

type Renderer interface {
	Render(a article.Article, lang article.Language) (subject, html string, err error)
}

// Sender reports whether the webhook accepted the article.
type Sender interface {
	Send(ctx context.Context, subject, html string) bool
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error
