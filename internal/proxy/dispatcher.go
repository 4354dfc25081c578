package proxy

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/die-net/tetherproxy/internal/config"
	"github.com/die-net/tetherproxy/internal/dialer"
	"github.com/die-net/tetherproxy/internal/logsink"
)

type connHandler interface {
	serveConn(ctx context.Context, c *connection) error
}

// dispatcher routes accepted connections to the handler for one protocol
// kind, each on its own goroutine.
type dispatcher struct {
	handler connHandler
	log     logsink.Logger
}

func newDispatcher(kind config.Kind, d dialer.Dialer, sink logsink.Sink) (*dispatcher, error) {
	var h connHandler
	switch kind {
	case config.HTTP:
		h = newHTTPHandler(d, sink)
	case config.SOCKS5:
		h = newSOCKS5Handler(d, sink)
	default:
		return nil, fmt.Errorf("unsupported proxy kind %s", kind)
	}
	return &dispatcher{handler: h, log: logsink.New(sink)}, nil
}

// dispatch serves c on a new goroutine and calls done once the client socket
// is closed. Nothing that happens while serving c, including a panic,
// escapes that goroutine.
func (d *dispatcher) dispatch(ctx context.Context, c *connection, done func()) {
	go func() {
		defer done()
		defer func() {
			_ = c.client.Close()
			if t := c.Target(); t != "" {
				d.log.Infof("client socket closed (%s, target %s, after %v)", c.clientIP(), t, time.Since(c.accepted).Round(time.Millisecond))
				return
			}
			d.log.Infof("client socket closed (%s)", c.clientIP())
		}()
		defer func() {
			if r := recover(); r != nil {
				d.log.Errorf("panic handling %s connection from %s: %v\n%s", c.kind, c.clientIP(), r, debug.Stack())
			}
		}()

		d.log.Infof("handling %s proxy connection from %s", c.kind, c.clientIP())
		if err := d.handler.serveConn(ctx, c); err != nil {
			if isTeardown(err) || ctx.Err() != nil {
				d.log.Debugf("%s connection from %s ended: %v", c.kind, c.clientIP(), err)
				return
			}
			d.log.Errorf("error handling %s connection from %s: %v", c.kind, c.clientIP(), err)
		}
	}()
}
