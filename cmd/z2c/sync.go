package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zotero2craft/zotero2craft/internal/app"
	"github.com/zotero2craft/zotero2craft/internal/config"
	"github.com/zotero2craft/zotero2craft/internal/daemon"
	"github.com/zotero2craft/zotero2craft/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one sync now",
	Long: `Fetch up to --max-items items from the configured Zotero collection and
create a Craft note for each one not synced before.

Each item ends as created, skipped (already processed) or error. A failing
item never stops the run; a failing Zotero fetch aborts it before anything
is written.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, _ := openApp(false)

		opts := a.RunOptions()
		if cmd.Flags().Changed("max-items") {
			opts.MaxItems, _ = cmd.Flags().GetInt("max-items")
		}
		if noSkip, _ := cmd.Flags().GetBool("no-skip"); noSkip {
			opts.SkipProcessed = false
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if !jsonOutput(cmd) {
			out.Printf("%s Syncing up to %d items...\n", out.Accent("→"), opts.MaxItems)
		}
		report, err := a.Sync(ctx, opts)
		if err != nil {
			if errors.Is(err, sync.ErrRunInProgress) {
				fatal("a sync for this configuration is already running")
			}
			if app.IsConfigError(err) {
				fatal("%v\nRun 'z2c config init' to configure.", err)
			}
			fatal("sync failed: %v", err)
		}

		if jsonOutput(cmd) {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
			return
		}
		out.Printf("%s", out.Report(report))
	},
}

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Sync on a fixed interval",
	Long: `Run a sync every --interval minutes (default: auto_sync.interval_minutes).

A run starts on every tick even if the previous one is still going; the
overlapping run is skipped and logged. The config file is watched, so new
credentials or a new interval apply without a restart.

Use --dashboard to serve the HTTP API and live run events as well.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath()
		a, logs := openApp(true)

		minutes := a.Config().AutoSync.IntervalMinutes
		if cmd.Flags().Changed("interval") {
			minutes, _ = cmd.Flags().GetInt("interval")
		}
		if minutes <= 0 {
			fatal("interval must be positive, got %d minutes", minutes)
		}
		if err := a.Config().Validate(); err != nil {
			fatal("%v\nRun 'z2c config init' to configure.", err)
		}

		cfg := daemon.DefaultConfig()
		cfg.Interval = time.Duration(minutes) * time.Minute
		cfg.Logger = logs.Logger("daemon")
		cfg.ConfigFile = path
		cfg.Reload = func() (time.Duration, error) {
			next, err := config.Load(path)
			if err != nil {
				return 0, err
			}
			if err := next.Validate(); err != nil {
				return 0, err
			}
			a.Reload(next)
			if next.AutoSync.IntervalMinutes <= 0 {
				return cfg.Interval, nil
			}
			return time.Duration(next.AutoSync.IntervalMinutes) * time.Minute, nil
		}

		d, err := daemon.NewWithConfig(a, cfg)
		if err != nil {
			fatal("%v", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if withDashboard, _ := cmd.Flags().GetBool("dashboard"); withDashboard {
			port, _ := cmd.Flags().GetInt("port")
			if !cmd.Flags().Changed("port") {
				port = a.Config().Dashboard.Port
			}
			server := startDashboard(a, logs, port)
			atExit(func() {
				if err := server.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "Error during dashboard shutdown: %v\n", err)
				}
			})
		}

		fmt.Printf("Syncing every %d minutes. Press Ctrl+C to stop...\n", minutes)
		if err := d.Start(ctx); err != nil {
			fatal("%v", err)
		}
		runs, skipped := d.Stats()
		fmt.Printf("Daemon stopped after %d runs (%d skipped)\n", runs, skipped)
	},
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func init() {
	syncCmd.Flags().IntP("max-items", "n", sync.DefaultMaxItems, "Maximum number of items to fetch (default: sync.max_items)")
	syncCmd.Flags().Bool("no-skip", false, "Process items even if already synced")
	syncCmd.Flags().Bool("json", false, "Print the report as JSON")

	daemonCmd.Flags().IntP("interval", "i", 5, "Minutes between runs (default: auto_sync.interval_minutes)")
	daemonCmd.Flags().Bool("dashboard", false, "Also serve the HTTP API and live events")
	daemonCmd.Flags().IntP("port", "p", 8080, "Dashboard port (default: dashboard.port)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(daemonCmd)
}
