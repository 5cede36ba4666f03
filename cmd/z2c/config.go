package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zotero2craft/zotero2craft/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "config",
	Short:   "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or edit the configuration interactively",
	Long: `Prompt for Zotero, Craft, AI and sync settings and write them to the
config file. Existing values are offered as defaults.

Set ACCESSIBLE=1 for plain prompts instead of the form UI.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath()
		cfg := loadConfig()

		accessible := os.Getenv("ACCESSIBLE") != ""
		if err := config.Edit(cfg, accessible); err != nil {
			fatal("%v", err)
		}
		if err := config.Save(cfg, path); err != nil {
			fatal("%v", err)
		}

		out.Printf("%s Saved %s\n", out.Pass("✓"), path)
		if err := cfg.Validate(); err != nil {
			out.Printf("%s %v\n", out.Warn("!"), err)
			return
		}
		out.Printf("Run %s to check the credentials.\n", out.Accent("z2c test"))
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and Z2C_*
environment overrides are applied. API keys are masked.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		text, err := cfg.Redacted().YAML()
		if err != nil {
			fatal("%v", err)
		}
		if cfg.File() == "" {
			out.Printf("%s\n", out.Muted("# no config file, showing defaults and environment"))
		} else {
			out.Printf("%s\n", out.Muted("# "+cfg.File()))
		}
		fmt.Print(text)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configPath())
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configuration is complete",
	Run: func(cmd *cobra.Command, args []string) {
		if err := loadConfig().Validate(); err != nil {
			fatal("%v", err)
		}
		out.Printf("%s Configuration is complete\n", out.Pass("✓"))
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(configCmd)
}
