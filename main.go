package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/tetherproxy/internal/config"
	"github.com/die-net/tetherproxy/internal/dialer"
	"github.com/die-net/tetherproxy/internal/lifecycle"
	"github.com/die-net/tetherproxy/internal/logsink"
	"github.com/die-net/tetherproxy/internal/proxy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagValues are the settings that can be given on the command line.
type flagValues struct {
	flags    *pflag.FlagSet
	protocol config.Kind
	port     uint16
}

// overlay replaces the fields of cfg whose flags were set explicitly.
func (f *flagValues) overlay(cfg config.Config) config.Config {
	if f.flags.Changed("protocol") {
		cfg.Kind = f.protocol
	}
	if f.flags.Changed("port") {
		cfg.Port = f.port
	}
	return cfg
}

func run() error {
	fv := &flagValues{flags: pflag.CommandLine, protocol: config.HTTP}
	pflag.Var(&fv.protocol, "protocol", "Proxy protocol to serve: http | socks5")
	pflag.Uint16Var(&fv.port, "port", config.DefaultPort, "Port to listen on (1-65535)")

	var (
		listenHost   = pflag.String("listen-host", proxy.DefaultListenHost, "Address the proxy binds to")
		settingsPath = pflag.String("settings", defaultSettingsPath(), "Settings file holding the saved protocol and port. Empty disables.")
		saveSettings = pflag.Bool("save-settings", false, "Write the effective protocol and port to --settings before starting")

		upstream = pflag.String("upstream", defaultUpstream(), "Upstream forwarding target URL: direct:// | http://host:port | https://host:port | socks5://host:port")

		debugListen        = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof and /debug/logs (e.g. 127.0.0.1:6060). Empty disables.")
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for upstream proxy negotiation")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		verbose            = pflag.Bool("verbose", false, "Enable debug logging, including expected connection teardown")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	loadConfig := func() (config.Config, error) {
		if *settingsPath == "" {
			return fv.overlay(config.Default()), nil
		}
		cfg, err := config.Load(*settingsPath)
		if err != nil {
			return cfg, err
		}
		return fv.overlay(cfg), nil
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Printf("using defaults: %v", err)
		cfg = fv.overlay(config.Default())
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if *saveSettings {
		if *settingsPath == "" {
			return errors.New("--save-settings requires --settings")
		}
		if err := os.MkdirAll(filepath.Dir(*settingsPath), 0o755); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		if err := config.Save(*settingsPath, cfg); err != nil {
			return err
		}
		log.Printf("saved %s proxy on port %d to %s", cfg.Kind, cfg.Port, *settingsPath)
	}

	zl, err := logsink.NewConsoleLogger(*verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ring := logsink.NewRing(logsink.DefaultRingSize)
	sink := logsink.Multi(logsink.NewZap(zl), ring)

	d, err := dialer.New(dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		KeepAlive:          ka,
	}, *upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	srv := proxy.NewServer(proxy.Options{
		ListenHost: *listenHost,
		KeepAlive:  ka,
		Dialer:     d,
		Log:        sink,
	})
	ctrl := lifecycle.NewController(srv, loadConfig, sink)

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		http.Handle("/debug/logs", ring)

		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Printf("debug listening on %s", *debugListen)
	}

	cfg.Active = true
	if err := ctrl.Apply(ctx, cfg); err != nil {
		return err
	}

	g.Go(func() error {
		<-ctx.Done()
		ctrl.OnStop()
		return nil
	})

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := ctrl.Reload(ctx); err != nil {
					log.Printf("reload failed: %v", err)
				}
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	log.Print("shutting down")
	return err
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return net.KeepAliveConfig{}, errors.New("empty")
	case "on":
		return net.KeepAliveConfig{Enable: true}, nil
	case "off":
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositive(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositive(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositive(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     time.Duration(keepIdle) * time.Second,
		Interval: time.Duration(keepIntvl) * time.Second,
		Count:    keepCnt,
	}, nil
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func defaultUpstream() string {
	for _, env := range []string{"ALL_PROXY", "all_proxy"} {
		if p := os.Getenv(env); p != "" {
			return p
		}
	}
	return "direct://"
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tetherproxy", "settings.json")
}
