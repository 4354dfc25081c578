package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "http", want: HTTP},
		{in: "HTTP", want: HTTP},
		{in: " socks5 ", want: SOCKS5},
		{in: "socks", want: SOCKS5},
		{in: "socks4", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("expected %s got %s", tt.want, got)
			}
		})
	}
}

func TestKindFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	k := HTTP
	fs.Var(&k, "protocol", "proxy protocol")

	if err := fs.Parse([]string{"--protocol", "socks5"}); err != nil {
		t.Fatal(err)
	}
	if k != SOCKS5 {
		t.Fatalf("expected socks5 got %s", k)
	}

	if err := fs.Parse([]string{"--protocol", "ftp"}); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: Default()},
		{name: "socks5", cfg: Config{Kind: SOCKS5, Port: 1080, Active: true}},
		{name: "zero port", cfg: Config{Kind: HTTP}, wantErr: true},
		{name: "bad kind", cfg: Config{Kind: Kind(7), Port: 80}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults got %v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	if err := Save(path, Config{Kind: SOCKS5, Port: 1080, Active: true}); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"protocol\": \"socks5\",\n  \"port\": 1080\n}\n"
	if string(b) != want {
		t.Fatalf("expected %q got %q", want, string(b))
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != (Config{Kind: SOCKS5, Port: 1080}) {
		t.Fatalf("unexpected config %v", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "port=80"},
		{name: "unknown protocol", body: `{"protocol":"ftp","port":21}`},
		{name: "zero port", body: `{"protocol":"http","port":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if cfg != Default() {
				t.Fatalf("expected defaults on error got %v", cfg)
			}
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"protocol":"socks5"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != (Config{Kind: SOCKS5, Port: DefaultPort}) {
		t.Fatalf("unexpected config %v", cfg)
	}
}
