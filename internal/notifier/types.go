// Package notifier forwards publish failures (and optionally successes and
// quota events) to operators through a transport.Sender.
//
// Delivery is asynchronous: Notify enqueues, a small worker pool sends with
// a shared rate limit and exponential retry. Identical messages inside the
// dedup window are suppressed; with PersistDedup the window survives
// restarts via the storage backend.
package notifier

import "time"

type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

type HistoryItem struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// NotificationEvent is the Data of notifier.* bus events.
type NotificationEvent struct {
	Channel string    `json:"channel"`
	ChatID  int64     `json:"chat_id"`
	Key     string    `json:"key"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

const (
	PriorityPublished    = 3
	PriorityQuotaReached = 5
	PriorityFailed       = 7
)
