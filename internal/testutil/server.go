package testutil

import (
	"context"
	"net"
	"testing"
)

// StartSingleAcceptServer serves exactly one connection with handler, then
// closes it. The returned func closes the listener and blocks until handler
// has returned.
func StartSingleAcceptServer(t *testing.T, ctx context.Context, handler func(net.Conn)) (net.Listener, func()) {
	t.Helper()

	ln := listenLoopback(t, ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}()

	return ln, func() {
		_ = ln.Close()
		<-done
	}
}

// UnusedAddr returns a loopback address with nothing listening on it, for
// provoking connection-refused errors.
func UnusedAddr(t *testing.T) string {
	t.Helper()

	ln := listenLoopback(t, context.Background())
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func listenLoopback(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return ln
}
