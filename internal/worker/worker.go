// Package worker runs one publishing loop per language.
//
// Each iteration checks the daily quota, picks the first unpublished article
// in file order, renders it, posts it to the webhook and, on success,
// records it in the ledger. A failed delivery leaves the article pending for
// the next iteration; nothing inside an iteration stops the loop.
package worker

import (
	"context"
	"errors"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"publishbot/internal/article"
	"publishbot/internal/delivery"
	"publishbot/internal/eventbus"
	"publishbot/internal/metrics"
	"publishbot/internal/storage"
	logx "publishbot/pkg/logx"
)

// Deps are the collaborators of one worker. Bus and Audit are optional.
type Deps struct {
	Ledger   Ledger
	Articles Articles
	Renderer Renderer
	Sender   Sender
	Bus      eventbus.Bus
	Audit    storage.Store
	Log      logx.Logger
}

type Worker struct {
	lang article.Language
	deps Deps
	log  logx.Logger

	// quota is drawn once and never re-rolled, even across UTC days.
	quota int

	mu     sync.Mutex
	timing Timing
	rng    *rand.Rand

	now   func() time.Time
	sleep Sleeper
}

type Option func(*Worker)

func WithRand(r *rand.Rand) Option { return func(w *Worker) { w.rng = r } }

func WithClock(now func() time.Time) Option { return func(w *Worker) { w.now = now } }

func WithSleeper(s Sleeper) Option { return func(w *Worker) { w.sleep = s } }

func New(lang article.Language, deps Deps, cfg Config, opts ...Option) *Worker {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &Worker{
		lang:  lang,
		deps:  deps,
		log:   log.With(logx.String("comp", "worker"), logx.String("lang", lang.Code)),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
		sleep: delivery.SleepContext,
	}
	for _, o := range opts {
		o(w)
	}
	w.timing = normalizeTiming(cfg.Timing)
	w.quota = drawInclusive(w.rng, cfg.QuotaMin, cfg.QuotaMax)
	return w
}

func normalizeTiming(t Timing) Timing {
	if t.IntervalMin < 0 {
		t.IntervalMin = 0
	}
	if t.IntervalMax < t.IntervalMin {
		t.IntervalMax = t.IntervalMin
	}
	if t.QuotaWait <= 0 {
		t.QuotaWait = DefaultQuotaWait
	}
	if t.IdleWait <= 0 {
		t.IdleWait = DefaultIdleWait
	}
	return t
}

// drawInclusive returns a uniform int in [lo, hi].
func drawInclusive(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

func (w *Worker) Language() article.Language { return w.lang }

func (w *Worker) Quota() int { return w.quota }

// Apply updates interval and wait bounds. The quota stays as drawn.
func (w *Worker) Apply(t Timing) {
	w.mu.Lock()
	w.timing = normalizeTiming(t)
	w.mu.Unlock()
}

func (w *Worker) Timing() Timing {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timing
}

// NextInterval draws the randomized pause after a publish attempt.
func (w *Worker) NextInterval() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Duration(drawInclusive(w.rng, w.timing.IntervalMin, w.timing.IntervalMax)) * time.Minute
}

// Run loops until ctx is cancelled and returns ctx's error.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", logx.Int("quota", w.quota))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, wait := w.Step(ctx)
		switch out {
		case OutcomePublished, OutcomeDeliveryFailed:
			w.log.Info("next attempt scheduled", logx.Float64("hours", wait.Hours()))
		default:
			w.log.Debug("waiting", logx.String("outcome", out.String()), logx.Duration("wait", wait))
		}
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Step runs one iteration and returns its outcome and the wait before the next.
func (w *Worker) Step(ctx context.Context) (out Outcome, wait time.Duration) {
	timing := w.Timing()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("worker iteration panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			out, wait = OutcomeError, timing.IdleWait
		}
		metrics.RecordOutcome(w.lang.Code, out.String())
	}()

	today, err := w.deps.Ledger.CountToday()
	if err != nil {
		w.log.Error("ledger count failed", logx.Err(err))
		return OutcomeError, timing.IdleWait
	}
	if today >= w.quota {
		w.log.Info("quota reached", logx.Int("today", today), logx.Int("quota", w.quota))
		w.publish(eventbus.TypeQuotaReached, eventbus.PublishEvent{Today: today})
		return OutcomeQuotaReached, timing.QuotaWait
	}

	pending, err := w.pending()
	if err != nil {
		w.log.Error("pending selection failed", logx.Err(err))
		return OutcomeError, timing.IdleWait
	}
	metrics.SetLanguageState(w.lang.Code, w.quota, today, len(pending))
	if len(pending) == 0 {
		w.log.Info("no pending articles")
		w.publish(eventbus.TypePublishIdle, eventbus.PublishEvent{Today: today})
		return OutcomeNoPending, timing.IdleWait
	}

	a := pending[0]
	log := w.log.With(logx.Int("article_id", a.ID), logx.String("title", a.Title))
	started := w.now()

	subject, html, err := w.deps.Renderer.Render(a, w.lang)
	if err != nil {
		log.Error("render failed", logx.Err(err))
		w.failed(ctx, a, today, started, "render: "+err.Error())
		return OutcomeDeliveryFailed, w.NextInterval()
	}

	if !w.deps.Sender.Send(ctx, subject, html) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return OutcomeError, timing.IdleWait
		}
		log.Warn("delivery failed, article stays pending")
		w.failed(ctx, a, today, started, "webhook delivery failed")
		return OutcomeDeliveryFailed, w.NextInterval()
	}

	// A crash before this append means the article is sent again next cycle.
	if err := w.deps.Ledger.MarkPublished(a); err != nil {
		log.Error("delivered but ledger append failed", logx.Err(err))
		return OutcomeError, w.NextInterval()
	}
	today++
	log.Info("article published", logx.Int("today", today), logx.Int("quota", w.quota))
	metrics.SetLanguageState(w.lang.Code, w.quota, today, len(pending)-1)
	w.audit(ctx, storage.AuditEntry{Action: storage.ActionPublishSent, ArticleID: a.ID, Title: a.Title, OK: true, TookMS: w.now().Sub(started).Milliseconds()})
	w.publish(eventbus.TypePublishSent, eventbus.PublishEvent{ArticleID: a.ID, Title: a.Title, Today: today})
	return OutcomePublished, w.NextInterval()
}

func (w *Worker) pending() ([]article.Article, error) {
	all, err := w.deps.Articles.List()
	if err != nil {
		return nil, err
	}
	ids, err := w.deps.Ledger.PublishedIDs()
	if err != nil {
		return nil, err
	}
	return article.Pending(all, ids), nil
}

func (w *Worker) failed(ctx context.Context, a article.Article, today int, started time.Time, reason string) {
	w.audit(ctx, storage.AuditEntry{Action: storage.ActionPublishFailed, ArticleID: a.ID, Title: a.Title, Error: reason, TookMS: w.now().Sub(started).Milliseconds()})
	w.publish(eventbus.TypePublishFailed, eventbus.PublishEvent{ArticleID: a.ID, Title: a.Title, Today: today, Reason: reason})
}

func (w *Worker) audit(ctx context.Context, e storage.AuditEntry) {
	if w.deps.Audit == nil {
		return
	}
	e.At = w.now()
	e.Lang = w.lang.Code
	storage.Audit(ctx, w.deps.Audit, w.log, e)
}

func (w *Worker) publish(typ string, pe eventbus.PublishEvent) {
	if w.deps.Bus == nil {
		return
	}
	pe.Lang = w.lang.Code
	pe.Quota = w.quota
	w.deps.Bus.Publish(eventbus.Event{Type: typ, Time: w.now(), Data: pe})
}
