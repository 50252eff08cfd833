// Package cli defines the blesync command tree.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/vitaminmoo/blesync/internal/ble"
	"github.com/vitaminmoo/blesync/internal/notify"
	"github.com/vitaminmoo/blesync/internal/tui"
	"github.com/vitaminmoo/blesync/internal/web"
)

// CLI is the root command structure for blesync.
type CLI struct {
	Verbose  bool          `short:"v" help:"Enable verbose debug output"`
	Config   string        `short:"c" type:"path" help:"Config file (default ~/.blesync/config.yaml)"`
	Interval time.Duration `help:"Override the sampling interval"`
	Storage  string        `type:"path" help:"Override the storage path"`
	SyncURL  string        `name:"sync-url" help:"Override the HTTP sync endpoint"`

	// Default command - TUI
	Tui TuiCmd `cmd:"" default:"withargs" help:"Launch interactive TUI (default)"`

	Scan ScanCmd `cmd:"" help:"List nearby named peripherals"`
	Run  RunCmd  `cmd:"" help:"Connect to a peripheral and record readings until interrupted"`
	Log  LogCmd  `cmd:"" help:"Print the stored reading log"`
	Sync SyncCmd `cmd:"" help:"Push the stored reading log once"`
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- TUI Command ---

type TuiCmd struct{}

func (c *TuiCmd) Run(globals *CLI) error {
	alerts := notify.NewChan(16)
	a, err := newApp(globals, appOptions{notifier: alerts, quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	gw, err := a.gateway(ctx, ble.NewTinyGoAdapter())
	if err != nil {
		return err
	}
	defer gw.Close()
	gw.Start(ctx)

	return tui.Run(ctx, gw, alerts.C())
}

// --- Scan Command ---

type ScanCmd struct {
	Duration time.Duration `short:"d" default:"10s" help:"How long to scan"`
	JSON     bool          `help:"Print results as JSON"`
}

func (c *ScanCmd) Run(globals *CLI) error {
	a, err := newApp(globals, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	scanner := ble.NewScanner(ble.NewTinyGoAdapter(), a.notifier, a.logger)
	if err := scanner.StartScan(ctx); err != nil {
		a.logger.Warn("scanning without adapter access", "error", err)
	}

	fmt.Fprintf(os.Stderr, "Scanning for %s...\n", c.Duration)
	select {
	case <-time.After(c.Duration):
	case <-ctx.Done():
	}
	scanner.StopScan()

	return printPeripherals(scanner.Results(), c.JSON)
}

func printPeripherals(found []ble.Peripheral, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}
	if len(found) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRSSI")
	for _, p := range found {
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, p.Name, p.RSSI)
	}
	return w.Flush()
}

// --- Run Command ---

type RunCmd struct {
	Name        string        `short:"n" xor:"target" help:"Connect to the first peripheral with this name"`
	ID          string        `xor:"target" help:"Connect to the peripheral with this address"`
	ScanTimeout time.Duration `default:"30s" help:"Give up if the peripheral is not found in time"`
	HTTP        string        `help:"Serve status on this address (overrides http.addr)"`
}

func (c *RunCmd) Run(globals *CLI) error {
	if c.Name == "" && c.ID == "" {
		return errors.New("one of --name or --id is required")
	}

	a, err := newApp(globals, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	gw, err := a.gateway(ctx, ble.NewTinyGoAdapter())
	if err != nil {
		return err
	}
	defer gw.Close()
	gw.Start(ctx)

	addr := a.cfg.HTTP.Addr
	if c.HTTP != "" {
		addr = c.HTTP
	}
	if addr != "" {
		srv := web.New(gw, os.Stderr, a.logger)
		go func() {
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				a.logger.Error("status server stopped", "error", err)
			}
		}()
	}

	target, err := c.find(ctx, gw)
	if err != nil {
		return err
	}

	sess, err := gw.ConnectPeripheral(ctx, target)
	if err != nil {
		return err
	}
	a.logger.Info("recording", "peripheral", sess.Peripheral.DisplayName(), "services", len(sess.Services))

	<-ctx.Done()
	a.logger.Info("shutting down")
	return gw.Close()
}

type scanSource interface {
	StartScan(context.Context)
	StopScan()
	Devices() []ble.Peripheral
}

// find scans until a peripheral matching the flags shows up.
func (c *RunCmd) find(ctx context.Context, gw scanSource) (ble.Peripheral, error) {
	scanCtx, cancel := context.WithTimeout(ctx, c.ScanTimeout)
	defer cancel()

	gw.StartScan(scanCtx)
	defer gw.StopScan()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, p := range gw.Devices() {
			if c.matches(p) {
				return p, nil
			}
		}
		select {
		case <-scanCtx.Done():
			return ble.Peripheral{}, fmt.Errorf("peripheral %s not found: %w", c.target(), scanCtx.Err())
		case <-ticker.C:
		}
	}
}

func (c *RunCmd) matches(p ble.Peripheral) bool {
	if c.ID != "" {
		return strings.EqualFold(p.ID, c.ID)
	}
	return p.Name == c.Name
}

func (c *RunCmd) target() string {
	if c.ID != "" {
		return c.ID
	}
	return fmt.Sprintf("%q", c.Name)
}

// --- Log Command ---

type LogCmd struct {
	JSON bool `help:"Print the raw stored JSON"`
	Tail int  `short:"t" help:"Only print the newest N readings"`
}

func (c *LogCmd) Run(globals *CLI) error {
	a, err := newApp(globals, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	log := a.store.Load(context.Background())
	if c.Tail > 0 && c.Tail < len(log) {
		log = log[len(log)-c.Tail:]
	}

	if c.JSON {
		s, err := log.Encode()
		if err != nil {
			return err
		}
		fmt.Println(s)
		return nil
	}

	if len(log) == 0 {
		fmt.Println("No stored readings.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTIMESTAMP\tVALUE")
	for i, r := range log {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, r.Timestamp.Local().Format(time.DateTime), r.Value)
	}
	return w.Flush()
}

// --- Sync Command ---

type SyncCmd struct{}

func (c *SyncCmd) Run(globals *CLI) error {
	a, err := newApp(globals, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	log := a.store.Load(ctx)
	if err := a.client.Sync(ctx, log); err != nil {
		return err
	}
	fmt.Printf("Synced %d readings\n", len(log))
	return nil
}
