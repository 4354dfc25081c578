package proxy

import (
	"context"
	"net"
)

// listen binds addr with SO_REUSEADDR so a restarted proxy can reclaim its
// port while old connections linger in TIME_WAIT.
func listen(ctx context.Context, addr string, ka net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return keepAliveListener{Listener: ln, ka: ka}, nil
}

// keepAliveListener applies the configured TCP keepalive to each accepted
// client.
type keepAliveListener struct {
	net.Listener
	ka net.KeepAliveConfig
}

func (l keepAliveListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(l.ka)
	}
	return c, nil
}
