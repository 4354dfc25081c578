package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// settings is the persisted form of a Config. The active flag is not
// stored: a restarted process always comes up stopped.
type settings struct {
	Protocol Kind   `json:"protocol"`
	Port     uint16 `json:"port"`
}

// Load reads the settings file at path. A missing file yields Default().
// The returned Config is never active.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read settings %s: %w", path, err)
	}

	s := settings{Protocol: cfg.Kind, Port: cfg.Port}
	if err := json.Unmarshal(b, &s); err != nil {
		return cfg, fmt.Errorf("parse settings %s: %w", path, err)
	}

	cfg = Config{Kind: s.Protocol, Port: s.Port}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("settings %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the protocol kind and port of cfg to path, replacing the file
// atomically.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	b, err := json.MarshalIndent(settings{Protocol: cfg.Kind, Port: cfg.Port}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
