package config

import (
	"errors"
	"fmt"
)

const DefaultPort = 8080

// Config is the immutable snapshot the proxy server runs with.
type Config struct {
	Kind   Kind
	Port   uint16
	Active bool
}

// Default returns the configuration used when nothing has been saved yet.
func Default() Config {
	return Config{Kind: HTTP, Port: DefaultPort}
}

// Validate reports whether cfg can be started.
func (c Config) Validate() error {
	if c.Kind != HTTP && c.Kind != SOCKS5 {
		return fmt.Errorf("invalid proxy kind %d", int(c.Kind))
	}
	if c.Port == 0 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%s proxy on port %d (active=%t)", c.Kind, c.Port, c.Active)
}
