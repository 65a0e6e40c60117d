package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"publishbot/internal/article"
	"publishbot/internal/config"
	"publishbot/internal/delivery"
	"publishbot/internal/eventbus"
	"publishbot/internal/filestore"
	"publishbot/internal/httpapi"
	"publishbot/internal/keepalive"
	"publishbot/internal/ledger"
	"publishbot/internal/notifier"
	"publishbot/internal/render"
	"publishbot/internal/runtime/supervisor"
	"publishbot/internal/storage"
	"publishbot/internal/transport/telegram"
	"publishbot/internal/worker"
	logx "publishbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	registry *article.Registry
	langs    map[string]httpapi.Lang
	workers  []*worker.Worker
	client   *delivery.Client
	renderer *render.Renderer

	notif  *notifier.Service
	bridge notifier.BridgeConfig
	keep   *keepalive.Service
	http   *httpapi.Server

	sup *supervisor.Supervisor
}

// New loads the config and builds every component. Data files are seeded and
// ledgers created here, so storage problems surface before anything runs.
func New(cfgm *config.ConfigManager) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, log := logx.New(mapLogging(cfg))
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      eventbus.New(),
		langs:    map[string]httpapi.Lang{},
		renderer: render.New(),
	}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		a.store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	dcfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.client = delivery.New(dcfg, log)

	wcfg, err := mapWorkerConfig(cfg)
	if err != nil {
		return nil, err
	}

	a.registry, err = article.NewRegistry(mapLanguages(cfg)...)
	if err != nil {
		return nil, err
	}
	files := filestore.New()
	for _, lang := range a.registry.All() {
		llog := log.With(logx.String("lang", lang.Code))
		repo := article.NewRepository(files, lang)
		seeded, err := repo.EnsureSeeded()
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", lang.Code, err)
		}
		if seeded {
			llog.Info("articles file seeded", logx.String("path", lang.ArticlesFile))
		}
		led, err := ledger.New(files, lang.LedgerFile)
		if err != nil {
			return nil, fmt.Errorf("ledger %s: %w", lang.Code, err)
		}
		w := worker.New(lang, worker.Deps{
			Ledger:   led,
			Articles: repo,
			Renderer: a.renderer,
			Sender:   a.client,
			Bus:      a.bus,
			Audit:    a.store,
			Log:      log,
		}, wcfg)
		a.workers = append(a.workers, w)
		a.langs[lang.Code] = httpapi.Lang{Articles: repo, Ledger: led, Quota: w.Quota}
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	if ncfg.Enabled {
		ad, err := telegram.New(mapTelegramConfig(cfg), log)
		if err != nil {
			return nil, fmt.Errorf("notifier: %w", err)
		}
		a.notif = notifier.New(ncfg, ad, log, a.bus, a.store)
		a.bridge = mapBridgeConfig(cfg)
	}

	kcfg, err := mapKeepaliveConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.keep = keepalive.New(kcfg, log)

	hcfg, err := mapHTTPConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.http = httpapi.NewServer(hcfg, httpapi.Deps{
		Registry: a.registry,
		Langs:    a.langs,
		Renderer: a.renderer,
		Audit:    a.store,
		Health:   a.health,
		Log:      log,
	})

	ok = true
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) health() map[string]any {
	out := map[string]any{"keepalive": a.keep.Snapshot()}
	if a.sup != nil {
		out["tasks"] = a.sup.Snapshot()
	}
	return out
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	if err := a.http.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("http: %w", err)
	}

	if a.notif != nil {
		// Detached so Stop can drain pending alerts after the workers are gone.
		a.notif.Start(context.WithoutCancel(a.sup.Context()))
		a.sup.GoRestart("notifier.bridge", func(c context.Context) error {
			return notifier.Forward(c, a.bus, a.notif, a.bridge, a.log.With(logx.String("comp", "notifier.bridge")))
		})
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	for _, w := range a.workers {
		a.sup.GoRestart("worker."+w.Language().Code, w.Run,
			supervisor.WithRestartBackoff(time.Second, time.Minute))
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if err := a.keep.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("keepalive: %w", err)
	}

	a.log.Info("app started",
		logx.Int("languages", a.registry.Len()),
		logx.String("http", a.http.Addr()),
		logx.Bool("notifier", a.notif != nil),
		logx.Bool("storage", a.store != nil),
	)
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// restartOnly lists sections that take effect on the next start.
var restartOnly = map[string]bool{"languages": true, "http": true, "storage": true}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogging(newCfg))

	if dcfg, err := mapDeliveryConfig(newCfg); err != nil {
		a.log.Warn("invalid webhook config; keeping previous", logx.Err(err))
	} else {
		a.client.Apply(dcfg)
	}

	if wcfg, err := mapWorkerConfig(newCfg); err != nil {
		a.log.Warn("invalid schedule config; keeping previous", logx.Err(err))
	} else {
		for _, w := range a.workers {
			w.Apply(wcfg.Timing)
		}
		if oldCfg != nil && (oldCfg.Schedule.QuotaMin != newCfg.Schedule.QuotaMin || oldCfg.Schedule.QuotaMax != newCfg.Schedule.QuotaMax) {
			a.log.Info("quota bounds changed; workers keep their drawn quota until restart")
		}
	}

	if kcfg, err := mapKeepaliveConfig(newCfg); err != nil {
		a.log.Warn("invalid keepalive config; keeping previous", logx.Err(err))
	} else {
		a.keep.Apply(kcfg)
	}

	if a.notif != nil {
		if ncfg, err := mapNotifierConfig(newCfg); err != nil {
			a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		} else if ncfg.Enabled {
			a.notif.Apply(ncfg)
		} else {
			a.log.Warn("notifier disabled in config; restart required to stop it")
		}
	} else if newCfg.Notifier != nil && newCfg.Notifier.Enabled {
		a.log.Warn("notifier enabled in config; restart required to start it")
	}

	var pending []string
	for _, s := range sections {
		if restartOnly[s] {
			pending = append(pending, s)
		}
	}
	if len(pending) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.String("sections", strings.Join(pending, ",")))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Time: time.Now(), Data: sections})
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeResources()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	var errs []error
	// step runs one shutdown step bounded by max and the caller's deadline.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
			errs = append(errs, fmt.Errorf("%s: %w", name, stepCtx.Err()))
		}
	}

	step("keepalive", time.Second, a.keep.Stop)
	step("http", 3*time.Second, a.http.Shutdown)
	// Workers stop at their next sleep or between delivery attempts.
	step("workers", 5*time.Second, a.sup.Stop)
	if a.notif != nil {
		step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	}

	a.log.Info("stopped")
	a.closeResources()
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}
