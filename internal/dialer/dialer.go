package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Dialer opens connections to proxy targets.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Upstream says where target connections are opened from: this host
// directly, or an upstream proxy.
type Upstream struct {
	Scheme string // "direct", "http", "https" or "socks5"
	Addr   string // upstream proxy host:port; empty for direct
}

func (u Upstream) String() string {
	if u.Scheme == "direct" {
		return "direct://"
	}
	return u.Scheme + "://" + u.Addr
}

var defaultPorts = map[string]string{
	"http":   "80",
	"https":  "443",
	"socks5": "1080",
}

// ParseUpstream parses direct://, http://host[:port], https://host[:port]
// or socks5://host[:port]. The scheme is case-insensitive and a missing port
// takes the scheme's default.
func ParseUpstream(s string) (Upstream, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Upstream{}, fmt.Errorf("invalid upstream: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)

	switch {
	case scheme == "":
		return Upstream{}, errors.New("invalid upstream: missing scheme")
	case u.Path != "" && u.Path != "/":
		return Upstream{}, fmt.Errorf("invalid upstream %q: unexpected path", s)
	case u.User != nil:
		return Upstream{}, fmt.Errorf("invalid upstream %q: credentials are not supported", s)
	}

	if scheme == "direct" {
		return Upstream{Scheme: scheme}, nil
	}

	port, ok := defaultPorts[scheme]
	if !ok {
		return Upstream{}, fmt.Errorf("invalid upstream scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return Upstream{}, fmt.Errorf("invalid upstream %q: missing host", s)
	}
	if u.Port() != "" {
		port = u.Port()
	}
	return Upstream{Scheme: scheme, Addr: net.JoinHostPort(u.Hostname(), port)}, nil
}

// New returns the Dialer for the upstream URL s.
func New(cfg Config, s string) (Dialer, error) {
	up, err := ParseUpstream(s)
	if err != nil {
		return nil, err
	}

	switch up.Scheme {
	case "direct":
		return NewDirectDialer(cfg), nil
	case "socks5":
		return NewSOCKSDialer(cfg, up.Addr), nil
	default:
		return NewConnectDialer(cfg, up.Addr, up.Scheme == "https"), nil
	}
}

var (
	timeNow      = time.Now
	zeroTime     time.Time
	aLongTimeAgo = time.Unix(1, 0)
)

// handshakeDeadline bounds the upstream handshake on c by
// cfg.NegotiationTimeout and aborts it when ctx is canceled. The returned
// func lifts both again.
func handshakeDeadline(ctx context.Context, c net.Conn, cfg Config) func() {
	if cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(timeNow().Add(cfg.NegotiationTimeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(aLongTimeAgo)
	})
	return func() {
		stop()
		_ = c.SetDeadline(zeroTime)
	}
}

func requireTCP(network, address string) error {
	if !strings.HasPrefix(network, "tcp") {
		return fmt.Errorf("dial %s %s: only tcp is proxied", network, address)
	}
	return nil
}
