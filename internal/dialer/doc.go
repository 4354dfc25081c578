// Package dialer opens the target connections of both proxy handlers.
//
// Targets are reached directly by default. An upstream HTTP proxy (via
// CONNECT, optionally over TLS) or SOCKS5 proxy can be chained in front
// instead; see ParseUpstream for the accepted forms.
package dialer
