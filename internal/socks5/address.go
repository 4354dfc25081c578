package socks5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"strings"

	txsocks5 "github.com/txthinking/socks5"
)

var (
	// ErrUnsupportedAddressType is returned for an ATYP other than IPv4,
	// domain name or IPv6.
	ErrUnsupportedAddressType = errors.New("socks5: address type not supported")

	// ErrMalformedAddress is returned when the raw address bytes do not match
	// the length their type requires.
	ErrMalformedAddress = errors.New("socks5: malformed address")
)

// Address is a decoded SOCKS5 destination.
type Address struct {
	Type byte
	Host string
	Port uint16
}

// String returns host:port, suitable for dialing.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// DecodeHost converts the raw DST.ADDR bytes for atyp into a host string.
//
// For domain names raw starts with the length octet, as on the wire. IPv6
// addresses are rendered as eight uncompressed groups ("2001:0db8:0000:...")
// rather than RFC 5952 text.
func DecodeHost(atyp byte, raw []byte) (string, error) {
	switch atyp {
	case txsocks5.ATYPIPv4:
		if len(raw) != net.IPv4len {
			return "", fmt.Errorf("%w: ipv4 needs %d bytes, got %d", ErrMalformedAddress, net.IPv4len, len(raw))
		}
		return netip.AddrFrom4([4]byte(raw)).String(), nil
	case txsocks5.ATYPDomain:
		if len(raw) < 2 || int(raw[0]) != len(raw)-1 {
			return "", fmt.Errorf("%w: bad domain length", ErrMalformedAddress)
		}
		return string(raw[1:]), nil
	case txsocks5.ATYPIPv6:
		if len(raw) != net.IPv6len {
			return "", fmt.Errorf("%w: ipv6 needs %d bytes, got %d", ErrMalformedAddress, net.IPv6len, len(raw))
		}
		var sb strings.Builder
		for i := 0; i < len(raw); i += 2 {
			if i > 0 {
				sb.WriteByte(':')
			}
			fmt.Fprintf(&sb, "%02x%02x", raw[i], raw[i+1])
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("%w: 0x%02x", ErrUnsupportedAddressType, atyp)
	}
}

// ReadAddress reads DST.ADDR and DST.PORT for atyp from r.
//
// An unknown atyp fails with ErrUnsupportedAddressType before anything is
// read. Short reads are returned as-is.
func ReadAddress(r io.Reader, atyp byte) (Address, error) {
	var raw []byte

	switch atyp {
	case txsocks5.ATYPIPv4:
		raw = make([]byte, net.IPv4len)
	case txsocks5.ATYPIPv6:
		raw = make([]byte, net.IPv6len)
	case txsocks5.ATYPDomain:
		var n [1]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return Address{}, fmt.Errorf("read domain length: %w", err)
		}
		raw = make([]byte, 1+int(n[0]))
		raw[0] = n[0]
	default:
		return Address{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedAddressType, atyp)
	}

	off := 0
	if atyp == txsocks5.ATYPDomain {
		off = 1
	}
	if _, err := io.ReadFull(r, raw[off:]); err != nil {
		return Address{}, fmt.Errorf("read address: %w", err)
	}

	host, err := DecodeHost(atyp, raw)
	if err != nil {
		return Address{}, err
	}

	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return Address{}, fmt.Errorf("read port: %w", err)
	}

	return Address{Type: atyp, Host: host, Port: binary.BigEndian.Uint16(port[:])}, nil
}
