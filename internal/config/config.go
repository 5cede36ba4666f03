// Package config loads, validates and persists the zotero2craft
// configuration bundle.
//
// Values are resolved by viper in this order: environment variables with the
// Z2C_ prefix (Z2C_ZOTERO_API_KEY, Z2C_SYNC_MAX_ITEMS, ...), the config file
// (TOML or YAML), then the defaults below.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/zeebo/blake3"

	"github.com/zotero2craft/zotero2craft/internal/bridge"
)

// AppName names the configuration directory.
const AppName = "zotero2craft"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "Z2C"

// State backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the full configuration bundle.
type Config struct {
	Zotero    ZoteroConfig    `mapstructure:"zotero" toml:"zotero" yaml:"zotero"`
	Craft     CraftConfig     `mapstructure:"craft" toml:"craft" yaml:"craft"`
	AI        AIConfig        `mapstructure:"ai" toml:"ai" yaml:"ai"`
	Sync      SyncConfig      `mapstructure:"sync" toml:"sync" yaml:"sync"`
	AutoSync  AutoSyncConfig  `mapstructure:"auto_sync" toml:"auto_sync" yaml:"auto_sync"`
	State     StateConfig     `mapstructure:"state" toml:"state" yaml:"state"`
	Log       LogConfig       `mapstructure:"log" toml:"log" yaml:"log"`
	Dashboard DashboardConfig `mapstructure:"dashboard" toml:"dashboard" yaml:"dashboard"`

	// file is the config file the values were read from, if any.
	file string
}

// ZoteroConfig holds the Source credentials and collection selector.
type ZoteroConfig struct {
	UserID       string `mapstructure:"user_id" toml:"user_id" yaml:"user_id"`
	APIKey       string `mapstructure:"api_key" toml:"api_key" yaml:"api_key"`
	CollectionID string `mapstructure:"collection_id" toml:"collection_id" yaml:"collection_id"`
	BaseURL      string `mapstructure:"base_url" toml:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// CraftConfig holds the Sink credentials and placement target.
type CraftConfig struct {
	LinkID             string `mapstructure:"link_id" toml:"link_id" yaml:"link_id"`
	APIKey             string `mapstructure:"api_key" toml:"api_key" yaml:"api_key"`
	ParentDocumentID   string `mapstructure:"parent_document_id" toml:"parent_document_id" yaml:"parent_document_id"`
	TargetCollectionID string `mapstructure:"target_collection_id" toml:"target_collection_id" yaml:"target_collection_id"`
	BaseURL            string `mapstructure:"base_url" toml:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// AIConfig holds the enrichment switch, credentials and model selector.
type AIConfig struct {
	Enabled  bool   `mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	Provider string `mapstructure:"provider" toml:"provider" yaml:"provider"`
	Endpoint string `mapstructure:"endpoint" toml:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKey   string `mapstructure:"api_key" toml:"api_key" yaml:"api_key"`
	Model    string `mapstructure:"model" toml:"model,omitempty" yaml:"model,omitempty"`
}

// SyncConfig holds the run parameters.
type SyncConfig struct {
	MaxItems      int  `mapstructure:"max_items" toml:"max_items" yaml:"max_items"`
	SkipProcessed bool `mapstructure:"skip_processed" toml:"skip_processed" yaml:"skip_processed"`
}

// AutoSyncConfig controls the interval scheduler.
type AutoSyncConfig struct {
	Enabled         bool `mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes" toml:"interval_minutes" yaml:"interval_minutes"`
}

// StateConfig selects the dedup store backend.
type StateConfig struct {
	Backend string `mapstructure:"backend" toml:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" toml:"path,omitempty" yaml:"path,omitempty"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	File       string `mapstructure:"file" toml:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days" yaml:"max_age_days"`
	Verbose    bool   `mapstructure:"verbose" toml:"verbose" yaml:"verbose"`
}

// DashboardConfig controls the local HTTP API.
type DashboardConfig struct {
	Port int `mapstructure:"port" toml:"port" yaml:"port"`
}

// defaults lists every recognized key. Environment overrides only apply to
// keys viper knows about, so every field must appear here.
var defaults = map[string]any{
	"zotero.user_id":             "",
	"zotero.api_key":             "",
	"zotero.collection_id":       "",
	"zotero.base_url":            "",
	"craft.link_id":              "",
	"craft.api_key":              "",
	"craft.parent_document_id":   "",
	"craft.target_collection_id": "",
	"craft.base_url":             "",
	"ai.enabled":                 false,
	"ai.provider":                "openai",
	"ai.endpoint":                "",
	"ai.api_key":                 "",
	"ai.model":                   "",
	"sync.max_items":             10,
	"sync.skip_processed":        true,
	"auto_sync.enabled":          false,
	"auto_sync.interval_minutes": 5,
	"state.backend":              BackendFile,
	"state.path":                 "",
	"log.file":                   "",
	"log.max_size_mb":            10,
	"log.max_backups":            3,
	"log.max_age_days":           28,
	"log.verbose":                false,
	"dashboard.port":             8080,
}

// Default returns the configuration with every default applied and no
// environment overrides.
func Default() *Config {
	return &Config{
		AI:        AIConfig{Provider: "openai"},
		Sync:      SyncConfig{MaxItems: 10, SkipProcessed: true},
		AutoSync:  AutoSyncConfig{IntervalMinutes: 5},
		State:     StateConfig{Backend: BackendFile},
		Log:       LogConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Dashboard: DashboardConfig{Port: 8080},
	}
}

// Dir returns the configuration directory ($XDG_CONFIG_HOME/zotero2craft on
// Linux).
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at path (the default path when empty) and
// applies environment overrides. A missing file is not an error: defaults
// and environment still apply.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := newViper()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
		v.SetConfigType("toml")
	}

	file := ""
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		file = path
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.file = file
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// File returns the config file the values were read from, or "" when only
// defaults and environment applied.
func (c *Config) File() string {
	return c.file
}

// Validate checks that every credential needed for a sync run is present.
// The returned error wraps bridge.ErrConfigInvalid and lists every problem.
func (c *Config) Validate() error {
	var problems []string
	require := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, key+" is required")
		}
	}

	require(c.Zotero.UserID, "zotero.user_id")
	require(c.Zotero.APIKey, "zotero.api_key")
	require(c.Zotero.CollectionID, "zotero.collection_id")
	require(c.Craft.LinkID, "craft.link_id")
	require(c.Craft.APIKey, "craft.api_key")
	if c.Craft.TargetCollectionID == "" && c.Craft.ParentDocumentID == "" {
		problems = append(problems, "craft.target_collection_id or craft.parent_document_id is required")
	}
	if c.AI.Enabled {
		require(c.AI.APIKey, "ai.api_key")
		switch c.AI.Provider {
		case "", "openai", "anthropic":
		default:
			problems = append(problems, fmt.Sprintf("ai.provider %q is not one of openai, anthropic", c.AI.Provider))
		}
	}
	if c.Sync.MaxItems <= 0 {
		problems = append(problems, "sync.max_items must be positive")
	}
	if c.AutoSync.Enabled && c.AutoSync.IntervalMinutes <= 0 {
		problems = append(problems, "auto_sync.interval_minutes must be positive")
	}
	switch c.State.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	default:
		problems = append(problems, fmt.Sprintf("state.backend %q is not one of memory, file, sqlite", c.State.Backend))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", bridge.ErrConfigInvalid, strings.Join(problems, "; "))
}

// Identity returns a stable key for the source collection and sink placement
// this configuration syncs between. Two configurations with the same identity
// must never run concurrently.
func (c *Config) Identity() string {
	h := blake3.New()
	for _, part := range []string{
		c.Zotero.UserID,
		c.Zotero.CollectionID,
		c.Craft.LinkID,
		c.Craft.TargetCollectionID,
		c.Craft.ParentDocumentID,
	} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// StatePath returns the dedup store location, defaulting to state.json or
// state.db in the config directory.
func (c *Config) StatePath() (string, error) {
	if c.State.Path != "" {
		return c.State.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	switch c.State.Backend {
	case BackendSQLite:
		return filepath.Join(dir, "state.db"), nil
	default:
		return filepath.Join(dir, "state.json"), nil
	}
}
