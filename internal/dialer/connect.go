package dialer

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
)

// StatusError is a non-2xx answer from an upstream proxy to CONNECT.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "upstream refused CONNECT: " + e.Status
}

// ConnectDialer reaches targets through an HTTP proxy's CONNECT method,
// optionally over TLS to the proxy.
type ConnectDialer struct {
	cfg       Config
	proxyAddr string
	useTLS    bool
	direct    Dialer
}

func NewConnectDialer(cfg Config, proxyAddr string, useTLS bool) *ConnectDialer {
	return &ConnectDialer{cfg: cfg, proxyAddr: proxyAddr, useTLS: useTLS, direct: NewDirectDialer(cfg)}
}

// ProxyAddr returns the upstream proxy host:port.
func (d *ConnectDialer) ProxyAddr() string {
	return d.proxyAddr
}

// DialContext returns a connection to address tunneled through the upstream
// proxy. The CONNECT exchange completes before it returns.
func (d *ConnectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if err := requireTCP(network, address); err != nil {
		return nil, err
	}

	c, err := d.direct.DialContext(ctx, network, d.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("http upstream: %w", err)
	}

	done := handshakeDeadline(ctx, c, d.cfg)
	defer done()

	if d.useTLS {
		host, _, _ := net.SplitHostPort(d.proxyAddr)
		tc := tls.Client(c, &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host})
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("http upstream tls handshake: %w", err)
		}
		c = tc
	}

	if err := writeConnect(c, address); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("http upstream connect %s: %w", address, err)
	}

	br := bufio.NewReader(c)
	if err := readConnectResponse(br); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("http upstream connect %s: %w", address, err)
	}

	if br.Buffered() > 0 {
		return &prefixConn{Conn: c, r: br}, nil
	}
	return c, nil
}

func writeConnect(w io.Writer, address string) error {
	_, err := fmt.Fprintf(w, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", address, address)
	return err
}

// readConnectResponse consumes the status line and headers of the reply to
// CONNECT. Any 2xx status opens the tunnel.
func readConnectResponse(br *bufio.Reader) error {
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	proto, status, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return fmt.Errorf("malformed status line %q", line)
	}
	codeStr, _, _ := strings.Cut(status, " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 || code > 999 {
		return fmt.Errorf("malformed status line %q", line)
	}

	if _, err := tp.ReadMIMEHeader(); err != nil {
		return fmt.Errorf("read headers: %w", err)
	}
	if code/100 != 2 {
		return &StatusError{Code: code, Status: status}
	}
	return nil
}

// prefixConn returns bytes already buffered after the CONNECT response
// before reading from the connection again.
type prefixConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *prefixConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *prefixConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}
