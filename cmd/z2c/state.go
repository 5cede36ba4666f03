package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/zotero2craft/zotero2craft/internal/sync"
)

var stateCmd = &cobra.Command{
	Use:     "state",
	GroupID: "advanced",
	Short:   "Inspect or reset the record of processed items",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the processed item count and last sync time",
	Run: func(cmd *cobra.Command, args []string) {
		a, _ := openApp(false)

		rec, err := a.State(context.Background())
		if err != nil {
			fatal("%v", err)
		}
		out.Printf("%s", out.Record(rec, a.Config().State.Backend))

		if keys, _ := cmd.Flags().GetBool("keys"); keys {
			for _, k := range rec.ProcessedKeys {
				out.Printf("  %s\n", k)
			}
		}
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every processed item",
	Long: `Empty the record of processed items. The next sync creates notes for
every item again, including items that already have one in Craft.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, _ := openApp(false)

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			confirmed := false
			err := huh.NewConfirm().
				Title("Forget every processed item?").
				Description("The next sync will create duplicate notes for items already in Craft.").
				Value(&confirmed).
				Run()
			if err != nil {
				fatal("%v", err)
			}
			if !confirmed {
				out.Printf("Aborted\n")
				return
			}
		}

		if err := a.ResetState(context.Background()); err != nil {
			if errors.Is(err, sync.ErrRunInProgress) {
				fatal("a sync is running, try again when it finishes")
			}
			fatal("%v", err)
		}
		out.Printf("%s Dedup record reset\n", out.Pass("✓"))
	},
}

func init() {
	stateShowCmd.Flags().Bool("keys", false, "List the processed item keys")
	stateResetCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)

	rootCmd.AddCommand(stateCmd)
}
