package socks5

import (
	"errors"
	"fmt"
	"io"

	txsocks5 "github.com/txthinking/socks5"
)

// ErrUnsupportedCommand is returned for any command other than CONNECT.
var ErrUnsupportedCommand = errors.New("socks5: command not supported")

// Greeting is the client's version identifier/method selection message.
type Greeting struct {
	Ver     byte
	Methods []byte
}

// ServerGreet reads the client greeting from r and selects no-auth on w.
//
// Only no-auth is implemented, so it is selected whatever the client
// offered; a client that cannot do no-auth fails on its own side.
func ServerGreet(r io.Reader, w io.Writer) (Greeting, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Greeting{}, fmt.Errorf("read greeting: %w", err)
	}

	g := Greeting{Ver: hdr[0], Methods: make([]byte, int(hdr[1]))}
	if _, err := io.ReadFull(r, g.Methods); err != nil {
		return Greeting{}, fmt.Errorf("read methods: %w", err)
	}

	if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(w); err != nil {
		return Greeting{}, fmt.Errorf("negotiation reply: %w", err)
	}
	return g, nil
}

// RequestHeader is the fixed VER CMD RSV ATYP prefix of a request.
type RequestHeader struct {
	Ver  byte
	Cmd  byte
	Rsv  byte
	Atyp byte
}

// ReadRequestHeader reads the four fixed request bytes.
func ReadRequestHeader(r io.Reader) (RequestHeader, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return RequestHeader{}, fmt.Errorf("read request: %w", err)
	}
	return RequestHeader{Ver: b[0], Cmd: b[1], Rsv: b[2], Atyp: b[3]}, nil
}

// ReadConnectRequest reads a complete CONNECT request.
//
// A non-CONNECT command fails with ErrUnsupportedCommand and an unknown
// address type with ErrUnsupportedAddressType; in both cases the address
// bytes are left unread. The header is returned whenever it was read.
func ReadConnectRequest(r io.Reader) (RequestHeader, Address, error) {
	hdr, err := ReadRequestHeader(r)
	if err != nil {
		return hdr, Address{}, err
	}
	if hdr.Cmd != txsocks5.CmdConnect {
		return hdr, Address{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedCommand, hdr.Cmd)
	}

	addr, err := ReadAddress(r, hdr.Atyp)
	if err != nil {
		return hdr, Address{}, err
	}
	return hdr, addr, nil
}
