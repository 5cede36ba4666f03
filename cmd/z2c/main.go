// Command z2c copies items from a Zotero collection into Craft as
// structured reading notes.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zotero2craft/zotero2craft/internal/app"
	"github.com/zotero2craft/zotero2craft/internal/config"
	"github.com/zotero2craft/zotero2craft/internal/logging"
	"github.com/zotero2craft/zotero2craft/internal/ui"
)

var (
	configFlag  string
	verboseFlag bool

	out = ui.New(os.Stdout)
)

var rootCmd = &cobra.Command{
	Use:   "z2c",
	Short: "Sync Zotero items into Craft reading notes",
	Long: `z2c reads the items of one Zotero collection, renders each as a
reading note (metadata, optional AI summary, empty note-taking sections) and
creates it in Craft. Processed item keys are recorded, so repeated runs only
pick up new items.

Configuration is read from the config file (see "z2c config path") and
Z2C_* environment variables, e.g. Z2C_ZOTERO_API_KEY.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

func main() {
	err := rootCmd.Execute()
	runCleanups()
	if err != nil {
		exit(1)
	}
}

// Cleanups registered with atExit run when the command returns and before
// fatal exits, so the dedup store and the log file are closed either way.
var (
	cleanups []func()
	exit     = os.Exit
)

func atExit(f func()) {
	cleanups = append(cleanups, f)
}

// runCleanups runs the registered cleanups in reverse order, once.
func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

// configPath returns the --config path or the default location.
func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	path, err := config.DefaultPath()
	if err != nil {
		fatal("%v", err)
	}
	return path
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath())
	if err != nil {
		fatal("%v", err)
	}
	return cfg
}

// newLogging builds the shared log writer. Log lines reach stderr for
// long-running commands or with --verbose; the log file, when configured,
// always gets them.
func newLogging(cfg *config.Config, console bool) *logging.Logging {
	verbose := verboseFlag || cfg.Log.Verbose
	var w io.Writer = io.Discard
	if console || verbose {
		w = os.Stderr
	}

	logs, err := logging.New(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Verbose:    verbose,
		Console:    w,
	})
	if err != nil {
		fatal("failed to open log file: %v", err)
	}
	atExit(func() { _ = logs.Close() })
	return logs
}

// openApp loads the config and wires the application.
func openApp(console bool) (*app.App, *logging.Logging) {
	cfg := loadConfig()
	logs := newLogging(cfg, console)
	a := app.New(cfg, logs)
	atExit(func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: closing dedup store: %v\n", err)
		}
	})
	return a, logs
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	runCleanups()
	exit(1)
}
