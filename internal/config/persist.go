package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// redacted replaces secrets in displayed configuration.
const redacted = "********"

// Save writes cfg as TOML to path, atomically and readable only by the
// owner since it holds API keys.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}

	cfg.file = path
	return nil
}

// Redacted returns a copy of cfg with every API key masked.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&out.Zotero.APIKey)
	mask(&out.Craft.APIKey)
	mask(&out.AI.APIKey)
	return &out
}

// YAML renders cfg with secrets masked, for display.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(data), nil
}
