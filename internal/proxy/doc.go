// Package proxy implements the tetherproxy listener and its protocol
// handlers.
//
// A Server binds one TCP port and speaks either the HTTP proxy protocol
// (CONNECT tunnels and plain request forwarding) or SOCKS5 (no-auth,
// CONNECT only) on it, depending on the config.Config it was started with.
// Tunnels are served by Relay, which copies bytes in both directions until
// each side has finished.
package proxy
