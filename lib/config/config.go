// Package config loads hxnav settings: defaults, then an optional YAML file,
// then HXNAV_* environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Config holds every tunable of the navigation engine.
type Config struct {
	// BaseURL is the origin of the CMMS server, e.g. http://localhost:8080.
	BaseURL string `yaml:"base_url" koanf:"base_url"`

	// LayoutPath is the fixed layout page whose query mirrors the content URL.
	LayoutPath   string `yaml:"layout_path" koanf:"layout_path"`
	ContentParam string `yaml:"content_param" koanf:"content_param"`

	// DefaultContent is the safe default used on first load, as error
	// fallback and as popstate fallback.
	DefaultContent string `yaml:"default_content" koanf:"default_content"`

	TitleSuffix           string        `yaml:"title_suffix" koanf:"title_suffix"`
	NotFoundRedirectDelay time.Duration `yaml:"not_found_redirect_delay" koanf:"not_found_redirect_delay"`
	RequestTimeout        time.Duration `yaml:"request_timeout" koanf:"request_timeout"`

	// BypassPrefixes are paths always left to native navigation.
	BypassPrefixes []string `yaml:"bypass_prefixes" koanf:"bypass_prefixes"`

	// Modules maps a route prefix (first path segment) to its script URL.
	Modules map[string]string `yaml:"modules" koanf:"modules"`

	// InlineScripts enables the legacy inline script runner.
	InlineScripts bool `yaml:"inline_scripts" koanf:"inline_scripts"`

	// SessionKey seals persisted history snapshots.
	SessionKey string `yaml:"session_key" koanf:"session_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:               "http://localhost:8080",
		LayoutPath:            "/layout",
		ContentParam:          "content",
		DefaultContent:        "/dashboard",
		TitleSuffix:           " | CMMS",
		NotFoundRedirectDelay: 3 * time.Second,
		RequestTimeout:        30 * time.Second,
		BypassPrefixes: []string{
			"/logout",
			"/login",
			"/auth/",
			"/files/",
			"/api/files/",
		},
		Modules: map[string]string{},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (HXNAV_*). A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: accessing %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("HXNAV_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "HXNAV_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("config: loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshalling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: base_url %q must be an absolute URL", c.BaseURL)
	}
	if !strings.HasPrefix(c.LayoutPath, "/") {
		return fmt.Errorf("config: layout_path %q must be root-relative", c.LayoutPath)
	}
	if c.ContentParam == "" {
		return fmt.Errorf("config: content_param is required")
	}
	if !strings.HasPrefix(c.DefaultContent, "/") {
		return fmt.Errorf("config: default_content %q must be root-relative", c.DefaultContent)
	}
	if c.NotFoundRedirectDelay < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("config: durations must be non-negative")
	}
	for id, script := range c.Modules {
		if id == "" || script == "" {
			return fmt.Errorf("config: module %q has no script", id)
		}
	}
	return nil
}
