package proxy

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/die-net/tetherproxy/internal/config"
)

// connection is one accepted client socket and what it negotiated.
type connection struct {
	id       uuid.UUID
	client   net.Conn
	kind     config.Kind
	accepted time.Time
	cancel   context.CancelFunc

	mu     sync.Mutex
	target string
}

func newConnection(client net.Conn, kind config.Kind, cancel context.CancelFunc) *connection {
	return &connection{
		id:       uuid.New(),
		client:   client,
		kind:     kind,
		accepted: time.Now(),
		cancel:   cancel,
	}
}

// clientIP returns the client's address without the port.
func (c *connection) clientIP() string {
	addr := c.client.RemoteAddr()
	if addr == nil {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}

// setTarget records the negotiated destination. Only the first call has any
// effect; a target never changes once chosen.
func (c *connection) setTarget(target string) {
	c.mu.Lock()
	if c.target == "" {
		c.target = target
	}
	c.mu.Unlock()
}

func (c *connection) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// close cancels the connection's context and closes the client socket,
// unblocking any read in its handler.
func (c *connection) close() {
	c.cancel()
	_ = c.client.Close()
}

// bufferedConn reads through a bufio.Reader that may already hold bytes the
// client sent after its request headers.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func bufferedConnFor(c net.Conn, br *bufio.Reader) net.Conn {
	if br.Buffered() == 0 {
		return c
	}
	return &bufferedConn{Conn: c, r: br}
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *bufferedConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}
