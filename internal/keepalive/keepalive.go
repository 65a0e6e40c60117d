// Package keepalive pings the local health endpoint on a cron schedule and
// reports liveness to systemd when running under a notify-type unit.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"publishbot/internal/delivery"
	logx "publishbot/pkg/logx"
)

const (
	DefaultInterval = 540 * time.Second
	DefaultTimeout  = 5 * time.Second
)

type Config struct {
	Disabled bool
	URL      string // e.g. http://127.0.0.1:5000/health
	Interval time.Duration
	Timeout  time.Duration
	Systemd  bool
}

// NotifyFunc matches daemon.SdNotify.
type NotifyFunc func(unsetEnvironment bool, state string) (bool, error)

// WatchdogFunc matches daemon.SdWatchdogEnabled.
type WatchdogFunc func(unsetEnvironment bool) (time.Duration, error)

type Stats struct {
	Pings       int64     `json:"pings"`
	Failures    int64     `json:"failures"`
	LastPingAt  time.Time `json:"last_ping_at,omitempty"`
	LastErr     string    `json:"last_err,omitempty"`
	Watchdog    string    `json:"watchdog,omitempty"`
	SystemdSent bool      `json:"systemd_ready"`
}

type Service struct {
	log      logx.Logger
	client   delivery.Doer
	notify   NotifyFunc
	watchdog WatchdogFunc

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	pingID  cron.EntryID
	ctx     context.Context
	stats   Stats
	started bool
}

type Option func(*Service)

func WithHTTPClient(c delivery.Doer) Option { return func(s *Service) { s.client = c } }

// WithSystemd replaces the sd_notify and watchdog probes (tests).
func WithSystemd(notify NotifyFunc, watchdog WatchdogFunc) Option {
	return func(s *Service) {
		s.notify = notify
		s.watchdog = watchdog
	}
}

func New(cfg Config, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:      log.With(logx.String("comp", "keepalive")),
		client:   &http.Client{},
		notify:   daemon.SdNotify,
		watchdog: daemon.SdWatchdogEnabled,
		cfg:      normalize(cfg),
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

func normalize(cfg Config) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}

// Start schedules the ping job and sends READY=1. Jobs run until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	s.ctx = ctx

	s.c = cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.log}),
		cron.SkipIfStillRunning(cronLogger{s.log}),
	))
	if !s.cfg.Disabled && s.cfg.URL != "" {
		s.pingID = s.c.Schedule(cron.Every(s.cfg.Interval), cron.FuncJob(s.pingJob))
		s.log.Info("keepalive scheduled", logx.String("url", s.cfg.URL), logx.Duration("every", s.cfg.Interval))
	}

	if s.cfg.Systemd {
		s.stats.SystemdSent = s.sdNotify(daemon.SdNotifyReady)
		if wd, err := s.watchdog(false); err != nil {
			s.log.Warn("systemd watchdog probe failed", logx.Err(err))
		} else if wd > 0 {
			every := wd / 2
			s.c.Schedule(cron.Every(every), cron.FuncJob(func() { s.sdNotify(daemon.SdNotifyWatchdog) }))
			s.stats.Watchdog = every.String()
			s.log.Info("systemd watchdog enabled", logx.Duration("every", every))
		}
	}

	s.c.Start()
	return nil
}

// Apply reschedules the ping job for a new interval or URL.
func (s *Service) Apply(cfg Config) {
	cfg = normalize(cfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	cfg.Systemd = old.Systemd
	s.cfg = cfg
	if s.c == nil || (old.Interval == cfg.Interval && old.URL == cfg.URL && old.Disabled == cfg.Disabled) {
		return
	}
	if s.pingID != 0 {
		s.c.Remove(s.pingID)
		s.pingID = 0
	}
	if !cfg.Disabled && cfg.URL != "" {
		s.pingID = s.c.Schedule(cron.Every(cfg.Interval), cron.FuncJob(s.pingJob))
	}
	s.log.Info("keepalive rescheduled", logx.Duration("every", cfg.Interval), logx.Bool("disabled", cfg.Disabled))
}

// Stop sends STOPPING=1 and waits for running jobs until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	systemd := s.cfg.Systemd
	s.c = nil
	s.started = false
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	if systemd {
		s.sdNotify(daemon.SdNotifyStopping)
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Service) pingJob() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	_ = s.Ping(ctx)
}

// Ping performs one health GET. Failures are logged at debug and returned.
func (s *Service) Ping(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	err := s.ping(ctx, cfg)

	s.mu.Lock()
	s.stats.Pings++
	s.stats.LastPingAt = time.Now()
	s.stats.LastErr = ""
	if err != nil {
		s.stats.Failures++
		s.stats.LastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Debug("keepalive ping failed", logx.Err(err))
	} else {
		s.log.Trace("keepalive ping ok")
	}
	return err
}

func (s *Service) ping(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

// sdNotify reports whether the message was delivered. It must not take s.mu.
func (s *Service) sdNotify(state string) bool {
	sent, err := s.notify(false, state)
	if err != nil {
		s.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	if sent && state != daemon.SdNotifyWatchdog {
		s.log.Debug("sd_notify sent", logx.String("state", state))
	}
	return sent
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
