// Package config loads skilltree settings from an optional HCL file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentic-research/skilltree/internal/source"
	"github.com/agentic-research/skilltree/internal/tree"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultSource is the public base achievement tree.
const DefaultSource = "https://minecraft.capta.co/BaseSkillTree.json"

// Config holds all application configuration.
type Config struct {
	// Tree source
	Source   string `hcl:"source,optional"`
	Selector string `hcl:"selector,optional"`
	// AllowedSources are the extra locations HTTP and MCP clients may load
	// besides Source. See source.AllowList for the entry syntax.
	AllowedSources []string `hcl:"allowed_sources,optional"`

	// Layout
	HorizontalSpacing float64 `hcl:"horizontal_spacing,optional"`
	VerticalSpacing   float64 `hcl:"vertical_spacing,optional"`
	OriginX           float64 `hcl:"origin_x,optional"`
	Collision         string  `hcl:"collision,optional"`

	// Server
	Addr           string   `hcl:"addr,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`

	// Progress database path; empty keeps progress in memory only.
	ProgressDB string `hcl:"progress_db,optional"`

	// Fetch
	FetchTimeout string `hcl:"fetch_timeout,optional"`

	// Logging
	LogLevel    string `hcl:"log_level,optional"`
	Development bool   `hcl:"development,optional"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Source:            DefaultSource,
		HorizontalSpacing: tree.DefaultHorizontalSpacing,
		VerticalSpacing:   tree.DefaultVerticalSpacing,
		OriginX:           tree.DefaultOriginX,
		Collision:         tree.CollisionDisambiguate.String(),
		Addr:              ":8080",
		AllowedOrigins:    []string{"*"},
		FetchTimeout:      "30s",
		LogLevel:          "info",
	}
}

// Load builds the configuration: defaults, then the HCL file at path (if
// path is non-empty), then SKILLTREE_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, src, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays attributes present in src onto cfg.
func decode(filename string, src []byte, cfg *Config) error {
	var file Config
	if err := hclsimple.Decode(filename, src, nil, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", filename, err)
	}
	if file.Source != "" {
		cfg.Source = file.Source
	}
	if file.Selector != "" {
		cfg.Selector = file.Selector
	}
	if file.HorizontalSpacing != 0 {
		cfg.HorizontalSpacing = file.HorizontalSpacing
	}
	if file.VerticalSpacing != 0 {
		cfg.VerticalSpacing = file.VerticalSpacing
	}
	if file.OriginX != 0 {
		cfg.OriginX = file.OriginX
	}
	if file.Collision != "" {
		cfg.Collision = file.Collision
	}
	if file.Addr != "" {
		cfg.Addr = file.Addr
	}
	if file.AllowedSources != nil {
		cfg.AllowedSources = file.AllowedSources
	}
	if file.AllowedOrigins != nil {
		cfg.AllowedOrigins = file.AllowedOrigins
	}
	if file.ProgressDB != "" {
		cfg.ProgressDB = file.ProgressDB
	}
	if file.FetchTimeout != "" {
		cfg.FetchTimeout = file.FetchTimeout
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.Development {
		cfg.Development = true
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
		return nil
	}

	str("SKILLTREE_SOURCE", &c.Source)
	str("SKILLTREE_SELECTOR", &c.Selector)
	str("SKILLTREE_COLLISION", &c.Collision)
	str("SKILLTREE_ADDR", &c.Addr)
	str("SKILLTREE_PROGRESS_DB", &c.ProgressDB)
	str("SKILLTREE_FETCH_TIMEOUT", &c.FetchTimeout)
	str("SKILLTREE_LOG_LEVEL", &c.LogLevel)

	if err := num("SKILLTREE_HORIZONTAL_SPACING", &c.HorizontalSpacing); err != nil {
		return err
	}
	if err := num("SKILLTREE_VERTICAL_SPACING", &c.VerticalSpacing); err != nil {
		return err
	}
	if err := num("SKILLTREE_ORIGIN_X", &c.OriginX); err != nil {
		return err
	}
	if v, ok := lookup("SKILLTREE_ALLOWED_SOURCES"); ok && v != "" {
		c.AllowedSources = strings.Split(v, ",")
	}
	if v, ok := lookup("SKILLTREE_ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}
	if v, ok := lookup("SKILLTREE_DEVELOPMENT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SKILLTREE_DEVELOPMENT: %w", err)
		}
		c.Development = b
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error
	if c.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if c.HorizontalSpacing <= 0 {
		errs = append(errs, fmt.Errorf("horizontal_spacing must be positive, got %v", c.HorizontalSpacing))
	}
	if c.VerticalSpacing <= 0 {
		errs = append(errs, fmt.Errorf("vertical_spacing must be positive, got %v", c.VerticalSpacing))
	}
	if _, err := tree.ParseCollisionPolicy(c.Collision); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Timeout parses FetchTimeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.FetchTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("fetch_timeout: %w", err)
	}
	return d, nil
}

// SourceAllowList returns the locations remote clients may load: Source
// plus AllowedSources.
func (c *Config) SourceAllowList() source.AllowList {
	list := source.AllowList{c.Source}
	return append(list, c.AllowedSources...)
}

// NormalizeOptions converts the layout settings into tree options.
func (c *Config) NormalizeOptions() []tree.Option {
	policy, _ := tree.ParseCollisionPolicy(c.Collision)
	return []tree.Option{
		tree.WithSpacing(c.HorizontalSpacing, c.VerticalSpacing),
		tree.WithOrigin(c.OriginX),
		tree.WithCollisionPolicy(policy),
	}
}
