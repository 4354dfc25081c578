package proxy

import (
	"net"

	"github.com/die-net/tetherproxy/internal/dialer"
	"github.com/die-net/tetherproxy/internal/logsink"
)

// DefaultListenHost binds the proxy on every interface so tethered clients
// can reach it.
const DefaultListenHost = "0.0.0.0"

// Options are the collaborators a Server is built with. Unlike config.Config
// they do not change between stop/start cycles.
type Options struct {
	// ListenHost is the address the listener binds to. Empty means
	// DefaultListenHost.
	ListenHost string

	KeepAlive net.KeepAliveConfig

	// Dialer opens target connections. Nil dials directly.
	Dialer dialer.Dialer

	// Log receives connection and server events. Nil discards them.
	Log logsink.Sink
}

func (o Options) withDefaults() Options {
	if o.ListenHost == "" {
		o.ListenHost = DefaultListenHost
	}
	if o.Dialer == nil {
		o.Dialer = dialer.NewDirectDialer(dialer.Config{KeepAlive: o.KeepAlive})
	}
	if o.Log == nil {
		o.Log = logsink.Discard
	}
	return o
}
