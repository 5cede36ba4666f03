package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// Edit runs an interactive form over cfg, prefilled with its current values.
// Accessible mode replaces the TUI with plain prompts.
func Edit(cfg *Config, accessible bool) error {
	maxItems := strconv.Itoa(cfg.Sync.MaxItems)
	interval := strconv.Itoa(cfg.AutoSync.IntervalMinutes)
	provider := cfg.AI.Provider
	if provider == "" {
		provider = "openai"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title("Zotero").Description("Find your user ID and create a key at zotero.org/settings/keys."),
			huh.NewInput().Title("User ID").Value(&cfg.Zotero.UserID).Validate(required("user ID")),
			huh.NewInput().Title("API key").EchoMode(huh.EchoModePassword).Value(&cfg.Zotero.APIKey).Validate(required("API key")),
			huh.NewInput().Title("Collection key").Value(&cfg.Zotero.CollectionID).Validate(required("collection key")),
		),
		huh.NewGroup(
			huh.NewNote().Title("Craft").Description("Use the link ID and key of a Craft Connect API link."),
			huh.NewInput().Title("Link ID").Value(&cfg.Craft.LinkID).Validate(required("link ID")),
			huh.NewInput().Title("API key").EchoMode(huh.EchoModePassword).Value(&cfg.Craft.APIKey).Validate(required("API key")),
			huh.NewInput().Title("Target collection ID").Description("Leave empty to create sub-pages instead.").Value(&cfg.Craft.TargetCollectionID),
			huh.NewInput().Title("Parent document ID").Description("Used when no target collection is set.").Value(&cfg.Craft.ParentDocumentID),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Generate AI summaries?").Value(&cfg.AI.Enabled),
			huh.NewSelect[string]().Title("Provider").Options(huh.NewOptions("openai", "anthropic")...).Value(&provider),
			huh.NewInput().Title("API key").EchoMode(huh.EchoModePassword).Value(&cfg.AI.APIKey),
			huh.NewInput().Title("Model").Description("Leave empty for the provider default.").Value(&cfg.AI.Model),
		),
		huh.NewGroup(
			huh.NewInput().Title("Items per run").Value(&maxItems).Validate(positive),
			huh.NewConfirm().Title("Skip already processed items?").Value(&cfg.Sync.SkipProcessed),
			huh.NewConfirm().Title("Enable auto sync?").Value(&cfg.AutoSync.Enabled),
			huh.NewInput().Title("Auto sync interval (minutes)").Value(&interval).Validate(positive),
			huh.NewSelect[string]().Title("State backend").
				Options(huh.NewOptions(BackendFile, BackendSQLite, BackendMemory)...).
				Value(&cfg.State.Backend),
		),
	).WithAccessible(accessible)

	if err := form.Run(); err != nil {
		return fmt.Errorf("config form: %w", err)
	}

	cfg.AI.Provider = provider
	cfg.Sync.MaxItems, _ = strconv.Atoi(maxItems)
	cfg.AutoSync.IntervalMinutes, _ = strconv.Atoi(interval)

	if cfg.Craft.TargetCollectionID == "" && cfg.Craft.ParentDocumentID == "" {
		return errors.New("either a target collection or a parent document is required")
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func positive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return errors.New("must be a positive number")
	}
	return nil
}
