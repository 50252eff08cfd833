package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vitaminmoo/blesync/internal/ble"
	"github.com/vitaminmoo/blesync/internal/cloud"
	"github.com/vitaminmoo/blesync/internal/config"
	"github.com/vitaminmoo/blesync/internal/gateway"
	"github.com/vitaminmoo/blesync/internal/logger"
	"github.com/vitaminmoo/blesync/internal/netstat"
	"github.com/vitaminmoo/blesync/internal/notify"
	"github.com/vitaminmoo/blesync/internal/store"
)

// maxProbeTimeout caps a single connectivity check.
const maxProbeTimeout = 10 * time.Second

// app holds everything a command needs, built from config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.LocalStore
	client   *cloud.Client
	notifier notify.Notifier

	closers []func() error
}

// appOptions tweak how the app is assembled for a given command.
type appOptions struct {
	notifier notify.Notifier
	quiet    bool // log to a file instead of the terminal (the TUI owns the screen)
}

// loadConfig reads the config file and applies global flag overrides.
func (c *CLI) loadConfig() (*config.Config, error) {
	config.Verbose = c.Verbose

	path := c.Config
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config: %w", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if c.Interval > 0 {
		cfg.Sampler.Interval = c.Interval
	}
	if c.Storage != "" {
		cfg.Storage.Path = c.Storage
	}
	if c.SyncURL != "" {
		cfg.Sync.URL = c.SyncURL
	}
	return cfg, config.Validate(cfg)
}

func newApp(globals *CLI, opts appOptions) (*app, error) {
	cfg, err := globals.loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	logCfg := cfg.Logger
	if opts.quiet && isTerminalOutput(logCfg.Output) {
		path, err := quietLogPath()
		if err != nil {
			return nil, err
		}
		logCfg.Output = path
	}
	log, closeLog, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeLog)
	a.logger = log

	a.notifier = opts.notifier
	if a.notifier == nil {
		a.notifier = notify.LogNotifier{Logger: log}
	}

	kv, err := store.OpenKV(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.store = store.NewLocalStore(kv, cfg.Storage.Key, log)
	a.closers = append(a.closers, a.store.Close)

	var pusher cloud.Pusher
	switch cfg.Sync.Transport {
	case "mqtt":
		pusher = cloud.NewMQTTPusher(cfg.Sync.MQTT.Broker, cfg.Sync.MQTT.Topic, cfg.Sync.MQTT.ClientID, cfg.Sync.Timeout, log)
	default:
		pusher = cloud.NewHTTPPusher(cfg.Sync.URL, cfg.Sync.Timeout)
	}
	a.client = cloud.NewClient(pusher, a.notifier, log)
	a.closers = append(a.closers, a.client.Close)

	log.Debug("app ready",
		"storage", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
		"transport", cfg.Sync.Transport,
		"interval", cfg.Sampler.Interval,
	)
	return a, nil
}

// feed starts the connectivity prober, or returns nil when probing is off.
func (a *app) feed(ctx context.Context) <-chan netstat.Event {
	url := a.cfg.Connectivity.CheckURL
	if url == "" {
		return nil
	}
	period := a.cfg.Connectivity.CheckPeriod
	prober := netstat.NewProber(url, period, min(period, maxProbeTimeout), a.logger)
	return prober.Run(ctx)
}

// gateway builds the pipeline on the system Bluetooth adapter.
func (a *app) gateway(ctx context.Context, adapter ble.Adapter) (*gateway.Gateway, error) {
	return gateway.New(gateway.Options{
		Adapter:        adapter,
		Store:          a.store,
		Syncer:         a.client,
		Monitor:        netstat.NewMonitor(a.logger),
		Feed:           a.feed(ctx),
		Notifier:       a.notifier,
		Interval:       a.cfg.Sampler.Interval,
		ConnectTimeout: a.cfg.BLE.ConnectTimeout,
		Logger:         a.logger,
	})
}

// Close releases everything in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// quietLogPath returns ~/.blesync/blesync.log, creating the directory.
func quietLogPath() (string, error) {
	base, err := config.BaseDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate log directory: %w", err)
	}
	if err := os.MkdirAll(base, 0700); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return filepath.Join(base, "blesync.log"), nil
}

func isTerminalOutput(output string) bool {
	switch output {
	case "", "stderr", "stdout":
		return true
	}
	return false
}
