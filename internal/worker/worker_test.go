package worker

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"publishbot/internal/article"
	"publishbot/internal/eventbus"
	"publishbot/internal/filestore"
	"publishbot/internal/ledger"
	"publishbot/internal/storage"
	logx "publishbot/pkg/logx"
)

var testLang = article.Language{Code: "en", Dir: "ltr"}

type fakeSender struct {
	mu       sync.Mutex
	ok       bool
	subjects []string
}

func (f *fakeSender) Send(_ context.Context, subject, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return f.ok
}

type stubRenderer struct {
	err   error
	panic bool
}

func (r stubRenderer) Render(a article.Article, _ article.Language) (string, string, error) {
	if r.panic {
		panic("template exploded")
	}
	if r.err != nil {
		return "", "", r.err
	}
	return a.Title, "<p>" + a.Body + "</p>", nil
}

type fixture struct {
	store  *filestore.Store
	repo   *article.Repository
	ledger *ledger.Ledger
	sender *fakeSender
	now    time.Time
}

func newFixture(t *testing.T, titles ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		store:  filestore.New(),
		sender: &fakeSender{ok: true},
		now:    time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
	}
	lang := testLang
	lang.ArticlesFile = filepath.Join(dir, "articles.json")
	lang.LedgerFile = filepath.Join(dir, "log_en.txt")
	f.repo = article.NewRepository(f.store, lang)
	for _, title := range titles {
		if _, err := f.repo.Add(article.Draft{Title: title, Body: "Body of " + title}); err != nil {
			t.Fatalf("Add(%q): %v", title, err)
		}
	}
	l, err := ledger.New(f.store, lang.LedgerFile, ledger.WithClock(func() time.Time { return f.now }))
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	f.ledger = l
	return f
}

func (f *fixture) worker(cfg Config, r Renderer, opts ...Option) *Worker {
	deps := Deps{Ledger: f.ledger, Articles: f.repo, Renderer: r, Sender: f.sender, Log: logx.Nop()}
	opts = append([]Option{WithRand(rand.New(rand.NewSource(7))), WithClock(func() time.Time { return f.now })}, opts...)
	return New(testLang, deps, cfg, opts...)
}

func defaultConfig() Config {
	return Config{QuotaMin: 10, QuotaMax: 15, Timing: Timing{IntervalMin: 170, IntervalMax: 190}}
}

func TestStepPublishesFirstPending(t *testing.T) {
	f := newFixture(t, "First", "Second")
	w := f.worker(defaultConfig(), stubRenderer{})

	out, wait := w.Step(context.Background())
	if out != OutcomePublished {
		t.Fatalf("Step() outcome = %v, want published", out)
	}
	if wait < 170*time.Minute || wait > 190*time.Minute {
		t.Fatalf("wait = %v, want within [170m, 190m]", wait)
	}
	if len(f.sender.subjects) != 1 || f.sender.subjects[0] != "First" {
		t.Fatalf("sent subjects = %q, want [First]", f.sender.subjects)
	}

	for id, want := range map[int]bool{1: true, 2: false} {
		got, err := f.ledger.IsPublished(id)
		if err != nil {
			t.Fatalf("IsPublished(%d): %v", id, err)
		}
		if got != want {
			t.Fatalf("IsPublished(%d) = %v, want %v", id, got, want)
		}
	}
	n, err := f.ledger.CountToday()
	if err != nil || n != 1 {
		t.Fatalf("CountToday() = %d, %v; want 1", n, err)
	}
}

func TestStepDeliveryFailureKeepsPending(t *testing.T) {
	f := newFixture(t, "Only")
	f.sender.ok = false
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	w := New(testLang, Deps{Ledger: f.ledger, Articles: f.repo, Renderer: stubRenderer{}, Sender: f.sender, Bus: bus},
		defaultConfig(), WithRand(rand.New(rand.NewSource(1))))

	out, wait := w.Step(context.Background())
	if out != OutcomeDeliveryFailed {
		t.Fatalf("outcome = %v, want delivery_failed", out)
	}
	if wait < 170*time.Minute {
		t.Fatalf("wait = %v, want the regular interval", wait)
	}
	if ok, _ := f.ledger.IsPublished(1); ok {
		t.Fatalf("failed article marked published")
	}
	select {
	case ev := <-events:
		if ev.Type != eventbus.TypePublishFailed {
			t.Fatalf("event = %q, want %q", ev.Type, eventbus.TypePublishFailed)
		}
		pe := ev.Data.(eventbus.PublishEvent)
		if pe.ArticleID != 1 || pe.Lang != "en" {
			t.Fatalf("event data = %+v", pe)
		}
	default:
		t.Fatalf("no publish.failed event")
	}

	// Next iteration retries the same article.
	f.sender.ok = true
	if out, _ := w.Step(context.Background()); out != OutcomePublished {
		t.Fatalf("retry outcome = %v, want published", out)
	}
	if f.sender.subjects[1] != "Only" {
		t.Fatalf("retry sent %q, want Only", f.sender.subjects[1])
	}
}

func TestStepQuotaReached(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	w := f.worker(Config{QuotaMin: 1, QuotaMax: 1}, stubRenderer{})

	if out, _ := w.Step(context.Background()); out != OutcomePublished {
		t.Fatalf("first outcome = %v, want published", out)
	}
	out, wait := w.Step(context.Background())
	if out != OutcomeQuotaReached {
		t.Fatalf("second outcome = %v, want quota_reached", out)
	}
	if wait != DefaultQuotaWait {
		t.Fatalf("wait = %v, want %v", wait, DefaultQuotaWait)
	}

	// Next UTC day the same quota applies to a fresh count.
	f.now = f.now.Add(24 * time.Hour)
	if out, _ := w.Step(context.Background()); out != OutcomePublished {
		t.Fatalf("next-day outcome = %v, want published", out)
	}
	if w.Quota() != 1 {
		t.Fatalf("Quota() = %d, want 1", w.Quota())
	}
}

func TestStepNoPending(t *testing.T) {
	f := newFixture(t)
	w := f.worker(defaultConfig(), stubRenderer{})
	out, wait := w.Step(context.Background())
	if out != OutcomeNoPending || wait != DefaultIdleWait {
		t.Fatalf("Step() = %v, %v; want no_pending, %v", out, wait, DefaultIdleWait)
	}
	if len(f.sender.subjects) != 0 {
		t.Fatalf("sent %d articles, want 0", len(f.sender.subjects))
	}
}

func TestStepRenderErrorCountsAsFailure(t *testing.T) {
	f := newFixture(t, "Broken")
	w := f.worker(defaultConfig(), stubRenderer{err: errors.New("bad template")})
	if out, _ := w.Step(context.Background()); out != OutcomeDeliveryFailed {
		t.Fatalf("outcome = %v, want delivery_failed", out)
	}
	if len(f.sender.subjects) != 0 {
		t.Fatalf("sender called after render error")
	}
}

func TestStepRecoversPanic(t *testing.T) {
	f := newFixture(t, "Boom")
	w := f.worker(Config{QuotaMin: 5, QuotaMax: 5, Timing: Timing{IdleWait: time.Minute}}, stubRenderer{panic: true})
	out, wait := w.Step(context.Background())
	if out != OutcomeError || wait != time.Minute {
		t.Fatalf("Step() = %v, %v; want error, 1m", out, wait)
	}
}

func TestStepStorageErrorWaitsIdle(t *testing.T) {
	f := newFixture(t, "A")
	// Corrupt the collection file.
	if err := f.store.AppendLine(f.repo.Language().ArticlesFile, "{not json"); err != nil {
		t.Fatalf("AppendLine: %v", err)
	}
	w := f.worker(defaultConfig(), stubRenderer{})
	out, wait := w.Step(context.Background())
	if out != OutcomeError || wait != DefaultIdleWait {
		t.Fatalf("Step() = %v, %v; want error, %v", out, wait, DefaultIdleWait)
	}
}

func TestStepWritesAudit(t *testing.T) {
	f := newFixture(t, "Audited")
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "audit.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer st.Close()

	w := New(testLang, Deps{Ledger: f.ledger, Articles: f.repo, Renderer: stubRenderer{}, Sender: f.sender, Audit: st},
		defaultConfig(), WithClock(func() time.Time { return f.now }))
	if out, _ := w.Step(context.Background()); out != OutcomePublished {
		t.Fatalf("outcome = %v, want published", out)
	}
	got, err := st.RecentAudit(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(got) != 1 || got[0].Action != storage.ActionPublishSent || got[0].ArticleID != 1 || !got[0].OK || got[0].Lang != "en" {
		t.Fatalf("audit = %+v", got)
	}
}

func TestQuotaDrawnWithinBounds(t *testing.T) {
	f := newFixture(t)
	for seed := int64(0); seed < 50; seed++ {
		w := f.worker(Config{QuotaMin: 10, QuotaMax: 15}, stubRenderer{}, WithRand(rand.New(rand.NewSource(seed))))
		if q := w.Quota(); q < 10 || q > 15 {
			t.Fatalf("Quota() = %d, want within [10, 15]", q)
		}
	}
}

func TestNextIntervalInclusiveBounds(t *testing.T) {
	f := newFixture(t)
	w := f.worker(Config{Timing: Timing{IntervalMin: 1, IntervalMax: 2}}, stubRenderer{})
	seen := map[time.Duration]bool{}
	for i := 0; i < 200; i++ {
		d := w.NextInterval()
		if d != time.Minute && d != 2*time.Minute {
			t.Fatalf("NextInterval() = %v, want 1m or 2m", d)
		}
		seen[d] = true
	}
	if len(seen) != 2 {
		t.Fatalf("NextInterval never hit both bounds: %v", seen)
	}

	w.Apply(Timing{IntervalMin: 5, IntervalMax: 5})
	if d := w.NextInterval(); d != 5*time.Minute {
		t.Fatalf("after Apply, NextInterval() = %v, want 5m", d)
	}
	if w.Timing().QuotaWait != DefaultQuotaWait {
		t.Fatalf("Apply dropped QuotaWait default")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx, cancel := context.WithCancel(context.Background())
	var waits []time.Duration
	w := f.worker(defaultConfig(), stubRenderer{}, WithSleeper(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		if len(waits) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}))

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if len(f.sender.subjects) != 2 {
		t.Fatalf("published %d, want 2", len(f.sender.subjects))
	}
	if waits[2] != DefaultIdleWait {
		t.Fatalf("third wait = %v, want idle wait %v", waits[2], DefaultIdleWait)
	}
}
