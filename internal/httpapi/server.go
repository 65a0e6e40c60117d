package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	logx "publishbot/pkg/logx"
)

// Server owns the listener and http.Server for the router.
type Server struct {
	cfg    Config
	log    logx.Logger
	router *gin.Engine

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	addr string
	done chan struct{}
}

func NewServer(cfg Config, deps Deps) *Server {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "http"))
	deps.Log = log
	return &Server{cfg: cfg.withDefaults(), log: log, router: NewRouter(deps)}
}

func (s *Server) Handler() http.Handler { return s.router }

// Start binds the listener and serves in the background. Bind errors are returned.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.srv, s.ln, s.addr = srv, ln, ln.Addr().String()
	done := make(chan struct{})
	s.done = done

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", logx.Err(err))
		}
	}()
	s.log.Info("http server listening", logx.String("addr", s.addr))
	return nil
}

// Addr reports the bound address while running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown drains in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.ln, s.addr, s.done = nil, nil, "", nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	err := srv.Shutdown(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		_ = srv.Close()
	} else {
		err = nil
	}
	<-done
	s.log.Info("http server stopped")
	return err
}
