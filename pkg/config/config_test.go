package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "crucible.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultSeason != "Season 18" || cfg.Threshold != 0.12 || cfg.FingerprintSize != 16 || cfg.MaxWidth != 920 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Layout.Attack) != 5 || len(cfg.Layout.Defense) != 5 {
		t.Fatalf("default layout missing: %+v", cfg.Layout)
	}
	warn, err := cfg.Validate()
	if err != nil {
		t.Fatal(err)
	}
	// D5 straddles the right edge in the stock layout.
	if len(warn) != 1 {
		t.Fatalf("expected one clamp warning, got %v", warn)
	}
}

func TestLoadFile(t *testing.T) {
	p := writeFile(t, `
default_season: Season 20
threshold: 0.2
layout:
  defense_first: true
  attack:
    - {id: A1, x: 0.1, y: 0.4, w: 0.07, h: 0.25}
  defense:
    - {id: D1, x: 0.6, y: 0.4, w: 0.07, h: 0.25}
portraits:
  - {name: Iron Fist, url: portraits/iron_fist.png}
  - {name: "", url: portraits/blank.png}
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultSeason != "Season 20" || cfg.Threshold != 0.2 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !cfg.Layout.DefenseFirst || len(cfg.Layout.Attack) != 1 || cfg.Layout.Attack[0].X != 0.1 {
		t.Fatalf("layout=%+v", cfg.Layout)
	}
	if cfg.FingerprintSize != 16 {
		t.Fatalf("missing fingerprint_size should default, got %d", cfg.FingerprintSize)
	}
	refs := cfg.References()
	if len(refs) != 1 || refs[0].Name != "Iron Fist" {
		t.Fatalf("refs=%+v", refs)
	}
	pc := cfg.Pipeline()
	if pc.Matcher.Threshold != 0.2 || pc.Defaults.Season != "Season 20" || !pc.Layout.DefenseFirst {
		t.Fatalf("pipeline config=%+v", pc)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, "default_season: Season 20\nsheet_url: http://file.example/exec\n")
	t.Setenv("DEFAULT_SEASON", "Season 21")
	t.Setenv("SHEET_URL", "http://env.example/exec")
	t.Setenv("MATCH_THRESHOLD", "0.05")
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultSeason != "Season 21" || cfg.SheetURL != "http://env.example/exec" || cfg.Threshold != 0.05 {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "threshold: [oops")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsThreshold(t *testing.T) {
	cfg := Default()
	cfg.Threshold = 0
	if _, err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero threshold")
	}
}

func TestNonFiniteThreshold(t *testing.T) {
	for _, v := range []string{"NaN", "Inf", "-Inf"} {
		t.Setenv("MATCH_THRESHOLD", v)
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Threshold != Default().Threshold {
			t.Fatalf("MATCH_THRESHOLD=%s gave threshold %v", v, cfg.Threshold)
		}
	}
	for _, v := range []float64{math.NaN(), math.Inf(1)} {
		cfg := Default()
		cfg.Threshold = v
		if _, err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for threshold %v", v)
		}
	}
}
