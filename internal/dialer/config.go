package dialer

import (
	"net"
	"time"
)

// Config holds the outbound dial settings shared by every Dialer.
type Config struct {
	// DialTimeout bounds DNS lookup and TCP connect. Zero means no limit.
	DialTimeout time.Duration

	// NegotiationTimeout bounds the handshake with an upstream proxy.
	NegotiationTimeout time.Duration

	KeepAlive net.KeepAliveConfig
}
