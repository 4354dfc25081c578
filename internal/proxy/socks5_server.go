package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/die-net/tetherproxy/internal/dialer"
	"github.com/die-net/tetherproxy/internal/logsink"
	"github.com/die-net/tetherproxy/internal/socks5"
)

// socks5Handler serves one SOCKS5 connection: no-auth negotiation followed
// by a single CONNECT.
type socks5Handler struct {
	dialer dialer.Dialer
	log    logsink.Logger
}

func newSOCKS5Handler(d dialer.Dialer, sink logsink.Sink) *socks5Handler {
	return &socks5Handler{dialer: d, log: logsink.New(sink)}
}

func (s *socks5Handler) serveConn(ctx context.Context, c *connection) error {
	client := c.client
	br := bufio.NewReader(client)

	g, err := socks5.ServerGreet(br, client)
	if err != nil {
		return err
	}
	s.log.Infof("SOCKS5 handshake from %s - version: %d, methods: %d", c.clientIP(), g.Ver, len(g.Methods))

	hdr, addr, err := socks5.ReadConnectRequest(br)
	switch {
	case errors.Is(err, socks5.ErrUnsupportedCommand):
		s.log.Warnf("unsupported SOCKS5 command %d from %s", hdr.Cmd, c.clientIP())
		socks5.WriteCommandNotSupportedReply(client)
		return nil
	case errors.Is(err, socks5.ErrUnsupportedAddressType):
		s.log.Warnf("unknown SOCKS5 address type %d from %s", hdr.Atyp, c.clientIP())
		socks5.WriteAddressNotSupportedReply(client)
		return nil
	case err != nil:
		return err
	}

	target := addr.String()
	c.setTarget(target)
	s.log.Infof("connecting to SOCKS5 target %s from %s", target, c.clientIP())

	up, err := s.dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		s.log.Errorf("SOCKS5 connect to %s for %s failed: %v", target, c.clientIP(), err)
		socks5.WriteServerFailureReply(client)
		return nil
	}
	defer up.Close()

	if err := socks5.WriteSuccessReply(client); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	s.log.Infof("SOCKS5 connection established between %s and %s", c.clientIP(), target)

	if err := Relay(ctx, bufferedConnFor(client, br), up); err != nil {
		s.log.Errorf("relay %s <-> %s: %v", c.clientIP(), target, err)
	}
	s.log.Infof("SOCKS5 connection closed for %s", c.clientIP())
	return nil
}
