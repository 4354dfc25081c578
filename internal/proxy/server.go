package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/die-net/tetherproxy/internal/config"
	"github.com/die-net/tetherproxy/internal/logsink"
)

// BindError reports that Start could not bind the listening socket.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Server is the proxy listener. It runs at most one configuration at a time
// and can be started again after Stop.
//
// Every accepted connection is served on its own goroutine with no upper
// bound, and no I/O deadline is applied once a connection is relaying; a
// flood of clients or an unresponsive upstream holds resources until Stop.
type Server struct {
	opts Options
	log  logsink.Logger

	mu  sync.Mutex
	run *serving
}

// serving is the state of one Start/Stop cycle.
type serving struct {
	cfg    config.Config
	ln     net.Listener
	cancel context.CancelFunc
	conns  *registry
	wg     sync.WaitGroup
}

func NewServer(opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{opts: opts, log: logsink.New(opts.Log)}
}

// Start binds ListenHost:cfg.Port and begins accepting connections in the
// background. It returns a *BindError if the port cannot be bound. Starting
// a running server only logs a warning.
//
// ctx is used for binding; the server keeps running until Stop.
func (s *Server) Start(ctx context.Context, cfg config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		s.log.Warnf("proxy server is already running")
		return nil
	}

	d, err := newDispatcher(cfg.Kind, s.opts.Dialer, s.opts.Log)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.opts.ListenHost, strconv.Itoa(int(cfg.Port)))
	ln, err := listen(ctx, addr, s.opts.KeepAlive)
	if err != nil {
		s.log.Errorf("error starting proxy server: %v", err)
		return &BindError{Addr: addr, Err: err}
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &serving{cfg: cfg, ln: ln, cancel: cancel, conns: newRegistry()}
	s.run = run

	run.wg.Add(1)
	go s.acceptLoop(sctx, run, d)

	s.log.Infof("%s proxy server started on %s", cfg.Kind, ln.Addr())
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, run *serving, d *dispatcher) {
	defer run.wg.Done()

	var tempDelay time.Duration
	for {
		conn, err := run.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !s.isCurrent(run) {
				return
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay = min(2*tempDelay, time.Second)
			}
			s.log.Errorf("error accepting client connection: %v; retrying in %v", err, tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		cctx, ccancel := context.WithCancel(ctx)
		c := newConnection(conn, run.cfg.Kind, ccancel)

		if !s.register(run, c) {
			ccancel()
			_ = conn.Close()
			return
		}
		s.log.Infof("client connected from %s", c.clientIP())

		d.dispatch(cctx, c, func() {
			run.conns.remove(c)
			ccancel()
			run.wg.Done()
		})
	}
}

// register adds c to run's registry unless run has been stopped.
func (s *Server) register(run *serving, c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != run {
		return false
	}
	run.conns.add(c)
	run.wg.Add(1)
	return true
}

func (s *Server) isCurrent(run *serving) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run == run
}

// Stop closes the listener and every live connection, then waits for all
// handlers to return. Stopping a stopped server does nothing.
func (s *Server) Stop() {
	s.mu.Lock()
	run := s.run
	s.run = nil
	s.mu.Unlock()

	if run == nil {
		return
	}

	s.log.Infof("stopping proxy server")
	run.cancel()
	n := run.conns.cancelAll()
	if err := run.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Errorf("error closing server socket: %v", err)
	}
	run.wg.Wait()
	s.log.Infof("proxy server stopped, %d connections closed", n)
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// Addr returns the bound listener address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil
	}
	return s.run.ln.Addr()
}

// Config returns the configuration the server is running with.
func (s *Server) Config() (config.Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return config.Config{}, false
	}
	return s.run.cfg, true
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	if run == nil {
		return 0
	}
	return run.conns.len()
}
