package proxy

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/die-net/tetherproxy/internal/config"
	"github.com/die-net/tetherproxy/internal/dialer"
	"github.com/die-net/tetherproxy/internal/logsink"
)

// recordingSink keeps every message for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []logsink.Event
}

func (r *recordingSink) Append(msg string, sev logsink.Severity) {
	r.mu.Lock()
	r.events = append(r.events, logsink.Event{Time: time.Now(), Message: msg, Severity: sev})
	r.mu.Unlock()
}

func (r *recordingSink) contains(sev logsink.Severity, substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Severity == sev && strings.Contains(ev.Message, substr) {
			return true
		}
	}
	return false
}

// countingDialer counts dial attempts before delegating to a direct dialer.
type countingDialer struct {
	mu    sync.Mutex
	dials []string
	next  dialer.Dialer
}

func newCountingDialer() *countingDialer {
	return &countingDialer{next: dialer.NewDirectDialer(dialer.Config{DialTimeout: 2 * time.Second})}
}

func (d *countingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, address)
	d.mu.Unlock()
	return d.next.DialContext(ctx, network, address)
}

func (d *countingDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func startServer(t *testing.T, kind config.Kind, opts Options) *Server {
	t.Helper()

	opts.ListenHost = "127.0.0.1"
	srv := NewServer(opts)
	if err := srv.Start(context.Background(), config.Config{Kind: kind, Active: true}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()

	c, err := net.DialTimeout("tcp", srv.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))
	t.Cleanup(func() { _ = c.Close() })
	return c
}
