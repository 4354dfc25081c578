// Package socks5 provides the SOCKS5 wire pieces shared by tetherproxy.
//
// It wraps the low-level protocol types in github.com/txthinking/socks5 for
// greetings and replies, and adds the byte-exact request reading the proxy
// server needs: the server must reply to a bad command before reading any
// address, and must refuse unknown address types with its own reply, which
// the library's combined request parser cannot express.
//
// The client helpers are used by the SOCKS5 upstream dialer.
package socks5
