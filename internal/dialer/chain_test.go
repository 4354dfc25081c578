package dialer_test

import (
	"context"
	"testing"
	"time"

	"github.com/die-net/tetherproxy/internal/config"
	"github.com/die-net/tetherproxy/internal/dialer"
	"github.com/die-net/tetherproxy/internal/proxy"
	"github.com/die-net/tetherproxy/internal/testutil"
)

// Chaining through a second tetherproxy exercises each upstream dialer
// against a real server of the same protocol.
func TestChainThroughProxy(t *testing.T) {
	tests := []struct {
		kind   config.Kind
		scheme string
	}{
		{config.HTTP, "http"},
		{config.SOCKS5, "socks5"},
	}

	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			echo := testutil.StartEchoTCPServer(t, ctx)

			up := proxy.NewServer(proxy.Options{ListenHost: "127.0.0.1"})
			if err := up.Start(ctx, config.Config{Kind: tt.kind, Active: true}); err != nil {
				t.Fatal(err)
			}
			t.Cleanup(up.Stop)

			d, err := dialer.New(dialer.Config{DialTimeout: 2 * time.Second, NegotiationTimeout: 2 * time.Second}, tt.scheme+"://"+up.Addr().String())
			if err != nil {
				t.Fatal(err)
			}

			conn, err := d.DialContext(ctx, "tcp", echo.Addr().String())
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(3 * time.Second))

			testutil.AssertEcho(t, conn, conn, []byte("chained"))
		})
	}
}
