package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zotero2craft/zotero2craft/internal/app"
	"github.com/zotero2craft/zotero2craft/internal/daemon"
	"github.com/zotero2craft/zotero2craft/internal/dashboard"
	"github.com/zotero2craft/zotero2craft/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Serve the local HTTP API and live run events",
	Long: `Start the local HTTP API on 127.0.0.1.

Routes:
  POST   /api/sync-now            run once; body {"maxItems": n, "skipProcessed": bool} is optional
  POST   /api/test-connections    probe Zotero, Craft and the AI provider
  GET    /api/zotero/collections  list Zotero collections
  GET    /api/craft/collections   list Craft collections
  GET    /api/state               show the dedup record
  DELETE /api/state               reset the dedup record

WebSocket messages on ws://127.0.0.1:<port>/ws:
- run_started: a run acquired its slot
- item_processed: one item outcome
- run_completed: the full report
- run_failed: the Zotero fetch aborted the run

When auto_sync.enabled is set, runs are also started on the configured interval.

Example usage:
  z2c serve                   # Start on dashboard.port (default 8080)
  z2c serve --port 9000       # Start on custom port`,
	Run: func(cmd *cobra.Command, args []string) {
		a, logs := openApp(true)

		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = a.Config().Dashboard.Port
		}
		server := startDashboard(a, logs, port)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var d *daemon.Daemon
		if auto := a.Config().AutoSync; auto.Enabled && auto.IntervalMinutes > 0 {
			cfg := daemon.DefaultConfig()
			cfg.Interval = time.Duration(auto.IntervalMinutes) * time.Minute
			cfg.RunOnStart = false
			cfg.Logger = logs.Logger("daemon")

			var err error
			if d, err = daemon.NewWithConfig(a, cfg); err != nil {
				fatal("%v", err)
			}
			go func() {
				if err := d.Start(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "Error: auto-sync stopped: %v\n", err)
				}
			}()
			fmt.Printf("Auto-sync every %d minutes\n", auto.IntervalMinutes)
		}

		fmt.Println("\nPress Ctrl+C to stop...")
		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		if d != nil {
			_ = d.Stop()
		}
		if err := server.Stop(); err != nil {
			fatal("during shutdown: %v", err)
		}
		fmt.Println("Dashboard server stopped")
	},
}

// startDashboard starts the API server and subscribes it to run events.
func startDashboard(a *app.App, logs *logging.Logging, port int) *dashboard.Server {
	logger := logs.Logger("dashboard")
	server := dashboard.NewServer(a, &dashboard.Config{Port: port, Logger: logger})
	a.Observe(dashboard.NewHandler(server, logger))

	if err := server.Start(); err != nil {
		fatal("failed to start dashboard: %v", err)
	}

	fmt.Printf("Dashboard server started on http://%s\n", server.GetAddr())
	fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.GetAddr())
	fmt.Printf("Health check: http://%s/health\n", server.GetAddr())
	return server
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default: dashboard.port)")

	rootCmd.AddCommand(serveCmd)
}
