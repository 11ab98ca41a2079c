package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"safeline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default("acme")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Company.ID != "acme" {
		t.Fatalf("company id = %s", cfg.Company.ID)
	}
	if len(cfg.Plants) == 0 || cfg.Plants[0].ID == "" {
		t.Fatalf("default config has no plants")
	}
	if cfg.Advisory.Enabled {
		t.Fatalf("advisory should be disabled by default")
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault("globex")))
	if err != nil {
		t.Fatalf("parse generated config: %v", err)
	}
	if cfg.Company.ID != "globex" {
		t.Fatalf("company id = %s", cfg.Company.ID)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing company id", "company:\n  name: x\n"},
		{"duplicate plant", "company:\n  id: a\nplants:\n  - id: p1\n  - id: p1\n"},
		{"plant without id", "company:\n  id: a\nplants:\n  - name: only-name\n"},
		{"webhook without url", "company:\n  id: a\nwebhooks:\n  - events: [observation.closed]\n"},
		{"negative webhook timeout", "company:\n  id: a\nwebhooks:\n  - url: http://x\n    timeout_seconds: -1\n"},
		{"advisory enabled without url", "company:\n  id: a\nadvisory:\n  enabled: true\n"},
	}
	for _, tc := range cases {
		if _, err := config.FromYAML([]byte(tc.yaml)); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("missing file should be nil,nil; got %v, %v", cfg, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "safeline.yml"), []byte(config.GenerateDefault("acme")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = config.LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Company.ID != "acme" {
		t.Fatalf("company id = %s", cfg.Company.ID)
	}
}

func TestPlantLookup(t *testing.T) {
	cfg := config.Default("acme")
	if p := cfg.Plant(cfg.Plants[0].ID); p == nil {
		t.Fatalf("known plant not found")
	}
	if p := cfg.Plant("nope"); p != nil {
		t.Fatalf("unknown plant should be nil")
	}
}
