package socks5

import (
	"io"

	txsocks5 "github.com/txthinking/socks5"
)

// Reply codes written by the server.
var (
	RepSuccess             = txsocks5.RepSuccess
	RepServerFailure       = txsocks5.RepServerFailure
	RepCommandNotSupported = txsocks5.RepCommandNotSupported
	RepAddressNotSupported = txsocks5.RepAddressNotSupported
)

// WriteReply writes a reply with code rep and an all-zero IPv4 bound
// address: 05 rep 00 01 00 00 00 00 00 00.
//
// The real bound address of the outbound socket is never reported; clients
// of a CONNECT-only proxy have no use for it.
func WriteReply(w io.Writer, rep byte) error {
	_, err := txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(w)
	return err
}

// WriteSuccessReply writes the CONNECT success reply.
func WriteSuccessReply(w io.Writer) error {
	return WriteReply(w, RepSuccess)
}

// WriteServerFailureReply writes a general SOCKS server failure reply.
func WriteServerFailureReply(w io.Writer) {
	_ = WriteReply(w, RepServerFailure)
}

// WriteCommandNotSupportedReply writes a reply indicating that the requested
// command is not supported.
func WriteCommandNotSupportedReply(w io.Writer) {
	_ = WriteReply(w, RepCommandNotSupported)
}

// WriteAddressNotSupportedReply writes a reply indicating that the address
// type is not supported.
func WriteAddressNotSupportedReply(w io.Writer) {
	_ = WriteReply(w, RepAddressNotSupported)
}
