package dialer

import (
	"context"
	"fmt"
	"net"

	"github.com/die-net/tetherproxy/internal/socks5"
)

// SOCKSDialer reaches targets through an upstream SOCKS5 proxy using the
// no-auth method.
type SOCKSDialer struct {
	cfg       Config
	proxyAddr string
	direct    Dialer
}

func NewSOCKSDialer(cfg Config, proxyAddr string) *SOCKSDialer {
	return &SOCKSDialer{cfg: cfg, proxyAddr: proxyAddr, direct: NewDirectDialer(cfg)}
}

// ProxyAddr returns the upstream proxy host:port.
func (d *SOCKSDialer) ProxyAddr() string {
	return d.proxyAddr
}

func (d *SOCKSDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if err := requireTCP(network, address); err != nil {
		return nil, err
	}

	c, err := d.direct.DialContext(ctx, network, d.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("socks5 upstream: %w", err)
	}

	done := handshakeDeadline(ctx, c, d.cfg)
	defer done()

	if err := socks5.ClientDial(c, address); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("socks5 upstream connect %s: %w", address, err)
	}
	return c, nil
}
