package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8010" || cfg.Odds.Workers != 4 || cfg.Odds.SkewThreshold != 2 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info level, got %q", cfg.Log.Level)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ODDS_WORKERS", "8")
	t.Setenv("ODDS_SEED", "42")
	t.Setenv("ODDS_LOW_LUCK_FACTOR", "0.25")
	t.Setenv("RULES_FILE", "/etc/warroom/rules.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" || cfg.Odds.Workers != 8 || cfg.Odds.Seed != 42 || cfg.Odds.LowLuckFactor != 0.25 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.RulesFile != "/etc/warroom/rules.yaml" {
		t.Errorf("unexpected rules file %q", cfg.RulesFile)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"not a number", "ODDS_WORKERS", "many", "parse env:"},
		{"no workers", "ODDS_WORKERS", "0", "ODDS_WORKERS"},
		{"runs above max", "ODDS_DEFAULT_RUNS", "999999", "ODDS_DEFAULT_RUNS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %v", tt.want, err)
			}
		})
	}
}
