// Package config loads the recognition settings: slot layout, portrait
// references, thresholds and the sheet webhook. Values come from an optional
// YAML file and are overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"crucible/pkg/fields"
	"crucible/pkg/fingerprint"
	"crucible/pkg/pipeline"
	"crucible/pkg/portrait"
	"crucible/pkg/region"
)

// Config is the full recognition configuration.
type Config struct {
	DefaultSeason   string               `yaml:"default_season"`
	Threshold       float64              `yaml:"threshold"`
	FingerprintSize int                  `yaml:"fingerprint_size"`
	MaxWidth        int                  `yaml:"max_width"`
	Workers         int                  `yaml:"workers"`
	Layout          region.Layout        `yaml:"layout"`
	Portraits       []portrait.Reference `yaml:"portraits"`
	SheetURL        string               `yaml:"sheet_url"`
	OCRLanguages    []string             `yaml:"ocr_languages"`
}

// Default returns the built-in configuration with no portraits.
func Default() Config {
	return Config{
		DefaultSeason:   fields.DefaultSeason,
		Threshold:       portrait.DefaultThreshold,
		FingerprintSize: fingerprint.DefaultSize,
		MaxWidth:        pipeline.DefaultMaxWidth,
		Workers:         4,
		Layout:          region.DefaultLayout(),
		OCRLanguages:    []string{"eng"},
	}
}

// Load reads path (when non-empty) over the defaults and applies
// environment overrides. A missing file is an error; an empty path is not.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// FromEnv loads the file named by CRUCIBLE_CONFIG, if any.
func FromEnv() (Config, error) {
	return Load(os.Getenv("CRUCIBLE_CONFIG"))
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DEFAULT_SEASON"); v != "" {
		c.DefaultSeason = v
	}
	if v := os.Getenv("SHEET_URL"); v != "" {
		c.SheetURL = v
	}
	if v := os.Getenv("MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			c.Threshold = f
		}
	}
	if v := os.Getenv("OCR_LANGUAGES"); v != "" {
		c.OCRLanguages = strings.Split(v, ",")
	}
}

// fillDefaults replaces zero values a partial YAML file left behind.
func (c *Config) fillDefaults() {
	d := Default()
	if c.DefaultSeason == "" {
		c.DefaultSeason = d.DefaultSeason
	}
	if c.FingerprintSize <= 0 {
		c.FingerprintSize = d.FingerprintSize
	}
	if c.MaxWidth < 0 {
		c.MaxWidth = 0
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if len(c.Layout.Attack) == 0 && len(c.Layout.Defense) == 0 {
		c.Layout.Attack = d.Layout.Attack
		c.Layout.Defense = d.Layout.Defense
	}
	if len(c.OCRLanguages) == 0 {
		c.OCRLanguages = d.OCRLanguages
	}
}

// Validate rejects unusable settings and returns warnings for settings that
// work but are probably mistakes.
func (c Config) Validate() (warnings []string, err error) {
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) || c.Threshold <= 0 {
		return nil, errors.New("config: threshold must be a positive number")
	}
	if c.FingerprintSize > 256 {
		return nil, fmt.Errorf("config: fingerprint_size %d too large", c.FingerprintSize)
	}
	seen := map[string]bool{}
	for _, r := range append(append([]region.Rect{}, c.Layout.Attack...), c.Layout.Defense...) {
		if r.ID != "" && seen[r.ID] {
			warnings = append(warnings, fmt.Sprintf("slot %s defined twice", r.ID))
		}
		seen[r.ID] = true
		if !r.InUnitSquare() {
			warnings = append(warnings, fmt.Sprintf("slot %s extends outside the image and will be clamped", r.ID))
		}
	}
	for i, p := range c.Portraits {
		if p.Name == "" || p.URL == "" {
			warnings = append(warnings, fmt.Sprintf("portrait %d has no name or source and will be skipped", i))
		}
	}
	return warnings, nil
}

// Defaults returns the field extraction defaults.
func (c Config) Defaults() fields.Defaults {
	return fields.Defaults{Season: c.DefaultSeason}
}

// Pipeline returns the processor configuration.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Layout:   c.Layout,
		Matcher:  portrait.NewMatcher(c.Threshold),
		Defaults: c.Defaults(),
		MaxWidth: c.MaxWidth,
		Workers:  c.Workers,
	}
}

// References returns the usable portrait references.
func (c Config) References() []portrait.Reference {
	out := make([]portrait.Reference, 0, len(c.Portraits))
	for _, p := range c.Portraits {
		if p.Name == "" || p.URL == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
