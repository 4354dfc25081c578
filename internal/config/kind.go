package config

import (
	"fmt"
	"strings"
)

// Kind selects which proxy protocol the listener speaks.
type Kind int

const (
	HTTP Kind = iota
	SOCKS5
)

// ParseKind parses "http" or "socks5", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "http":
		return HTTP, nil
	case "socks5", "socks":
		return SOCKS5, nil
	default:
		return 0, fmt.Errorf("unknown proxy kind %q (want http or socks5)", s)
	}
}

func (k Kind) String() string {
	switch k {
	case HTTP:
		return "http"
	case SOCKS5:
		return "socks5"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Set implements pflag.Value.
func (k *Kind) Set(s string) error {
	v, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Type implements pflag.Value.
func (k *Kind) Type() string {
	return "protocol"
}

// MarshalText stores the kind by name in the settings file.
func (k Kind) MarshalText() ([]byte, error) {
	if k != HTTP && k != SOCKS5 {
		return nil, fmt.Errorf("invalid proxy kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	return k.Set(string(b))
}
