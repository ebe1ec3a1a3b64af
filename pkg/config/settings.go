package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings tune the form engine. They are read from a YAML file:
//
//	permissions: enforce
//	hidden_fields: [naming_series]
//	row_defaults: {qty: 1}
//	default_company: Acme
//	timeout: 30s
type Settings struct {
	Permissions    string         `yaml:"permissions"`
	HiddenFields   []string       `yaml:"hidden_fields"`
	HideUnlabeled  bool           `yaml:"hide_unlabeled"`
	RowDefaults    map[string]any `yaml:"row_defaults"`
	DefaultCompany string         `yaml:"default_company"`
	Timeout        time.Duration  `yaml:"timeout"`
	SchemaWorkers  int            `yaml:"schema_workers"`
	CacheSize      int            `yaml:"cache_size"`
}

// DefaultSettings enforce permissions and hide nothing.
func DefaultSettings() Settings {
	return Settings{Permissions: "enforce", Timeout: 30 * time.Second, SchemaWorkers: 4}
}

// LoadSettings reads path over the defaults. An empty path or a missing file
// yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("settings %s: %w", path, err)
	}
	switch s.Permissions {
	case "", "enforce", "allow-all":
	default:
		return s, fmt.Errorf("settings %s: unknown permissions mode %q", path, s.Permissions)
	}
	return s, nil
}
