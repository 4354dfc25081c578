// Package lifecycle turns start/stop/reload requests into proxy server
// state changes.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/die-net/tetherproxy/internal/config"
	"github.com/die-net/tetherproxy/internal/logsink"
)

// Server is the part of proxy.Server the controller drives.
type Server interface {
	Start(ctx context.Context, cfg config.Config) error
	Stop()
	Running() bool
	Config() (config.Config, bool)
}

// Source produces the configuration to run after a reload.
type Source func() (config.Config, error)

// Controller serializes start and stop requests for one Server.
type Controller struct {
	srv    Server
	source Source
	log    logsink.Logger

	// addrs lists local addresses; replaced in tests.
	addrs func() ([]string, error)

	mu sync.Mutex
}

func NewController(srv Server, source Source, sink logsink.Sink) *Controller {
	return &Controller{
		srv:    srv,
		source: source,
		log:    logsink.New(sink),
		addrs:  LocalAddresses,
	}
}

// OnStart validates cfg and starts the server with it.
func (c *Controller) OnStart(ctx context.Context, cfg config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start(ctx, cfg)
}

// OnStop stops the server if it is running.
func (c *Controller) OnStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.srv.Stop()
}

// Apply brings the server in line with cfg: an active cfg is started, or
// restarted if the server runs a different kind or port; an inactive one
// stops the server.
func (c *Controller) Apply(ctx context.Context, cfg config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !cfg.Active {
		c.srv.Stop()
		return nil
	}

	if cur, ok := c.srv.Config(); ok {
		if cur.Kind == cfg.Kind && cur.Port == cfg.Port {
			return nil
		}
		c.log.Infof("switching from %s to %s", cur, cfg)
		c.srv.Stop()
	}
	return c.start(ctx, cfg)
}

// Reload reads a fresh configuration from the source and restarts the
// server with it. A configuration that fails to load or validate leaves
// the running server untouched.
func (c *Controller) Reload(ctx context.Context) error {
	if c.source == nil {
		return errors.New("no configuration source")
	}

	cfg, err := c.source()
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	cfg.Active = true

	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Infof("reloading %s", cfg)
	c.srv.Stop()
	return c.start(ctx, cfg)
}

func (c *Controller) start(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Active = true

	if err := c.srv.Start(ctx, cfg); err != nil {
		return err
	}

	addrs, err := c.addrs()
	if err != nil {
		c.log.Warnf("listing local addresses: %v", err)
		return nil
	}
	port := strconv.Itoa(int(cfg.Port))
	for _, a := range addrs {
		c.log.Infof("%s proxy reachable at %s", cfg.Kind, net.JoinHostPort(a, port))
	}
	return nil
}
