package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Name != "taktik-bot" {
		t.Errorf("expected server name 'taktik-bot', got %q", cfg.Server.Name)
	}
	if cfg.Engine.Quota != 30 {
		t.Errorf("expected quota 30, got %d", cfg.Engine.Quota)
	}
	if cfg.Engine.PollLimit != 4 {
		t.Errorf("expected poll limit 4, got %d", cfg.Engine.PollLimit)
	}
	if cfg.Device.GetProbeTimeout() != 2*time.Second {
		t.Errorf("expected probe timeout 2s, got %v", cfg.Device.GetProbeTimeout())
	}
	if cfg.Device.GetSettleDelay() != 1200*time.Millisecond {
		t.Errorf("expected settle delay 1200ms, got %v", cfg.Device.GetSettleDelay())
	}
	if !cfg.Device.IsHeadless() {
		t.Error("expected headless by default")
	}
	if cfg.History.Backend != "memory" {
		t.Errorf("expected memory history backend, got %q", cfg.History.Backend)
	}
	if cfg.History.GetProcessedWindow() != 24*time.Hour {
		t.Errorf("expected processed window 24h, got %v", cfg.History.GetProcessedWindow())
	}
	if !cfg.Filters.ShouldSkipPrivate() {
		t.Error("expected private profiles skipped by default")
	}
	if !cfg.Timing.AreBreaksEnabled() {
		t.Error("expected breaks enabled by default")
	}
}

func TestRateNormalize(t *testing.T) {
	cases := []struct {
		name string
		rate Rate
		want float64
	}{
		{"empty", Rate{}, 0},
		{"percentage", Pct(80), 0.8},
		{"probability", Prob(0.25), 0.25},
		{"percentage wins over probability", Rate{Percentage: ptr(40.0), Probability: ptr(0.9)}, 0.4},
		{"negative clamps to zero", Pct(-5), 0},
		{"overflow clamps to one", Prob(1.7), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rate.Normalize(); got != tc.want {
				t.Errorf("Normalize() = %v, want %v", got, tc.want)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
engine:
  quota: 5
actions:
  like:
    percentage: 60
  follow:
    probability: 0.1
history:
  backend: redis
  redis_addr: "localhost:6380"
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Quota != 5 {
		t.Errorf("expected quota 5, got %d", cfg.Engine.Quota)
	}
	// Untouched sections keep their defaults.
	if cfg.Engine.PollLimit != 4 {
		t.Errorf("expected default poll limit 4, got %d", cfg.Engine.PollLimit)
	}
	if got := cfg.Actions.Like.Normalize(); got != 0.6 {
		t.Errorf("expected like rate 0.6, got %v", got)
	}
	if got := cfg.Actions.Follow.Normalize(); got != 0.1 {
		t.Errorf("expected follow rate 0.1, got %v", got)
	}
	if cfg.History.RedisAddr != "localhost:6380" {
		t.Errorf("expected redis addr override, got %q", cfg.History.RedisAddr)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("history:\n  backend: dynamo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown history backend")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
