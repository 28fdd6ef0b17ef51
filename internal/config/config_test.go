package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.PatchSize != 16 || cfg.ImageSize != 768 {
		t.Fatalf("grid defaults = %d/%d", cfg.PatchSize, cfg.ImageSize)
	}
	if cfg.ImageSize%cfg.PatchSize != 0 {
		t.Fatal("target size must be a whole number of patches")
	}
	if cfg.KeepBelow >= cfg.KeepAbove {
		t.Fatalf("filter thresholds inverted: %f >= %f", cfg.KeepBelow, cfg.KeepAbove)
	}
	if cfg.Mean == [3]float32{} || cfg.Std == [3]float32{} {
		t.Fatal("normalization constants missing")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_URL", "http://store:9999")
	t.Setenv("ADMIN_EMAIL", "ops@example.com")
	t.Setenv("ADMIN_PASS", "hunter2")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("MAX_CONCURRENT_RUNS", "5")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.StoreURL != "http://store:9999" || cfg.AdminEmail != "ops@example.com" || cfg.AdminPass != "hunter2" {
		t.Fatalf("store settings = %q/%q/%q", cfg.StoreURL, cfg.AdminEmail, cfg.AdminPass)
	}
	if cfg.PollInterval != 30*time.Second || cfg.MaxConcurrentRuns != 5 {
		t.Fatalf("scheduler settings = %v/%d", cfg.PollInterval, cfg.MaxConcurrentRuns)
	}
	// Untouched settings keep their defaults.
	if cfg.PatchSize != Default().PatchSize {
		t.Fatalf("PatchSize = %d", cfg.PatchSize)
	}
}

func TestFromEnvBadValues(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "not-a-duration")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for malformed POLL_INTERVAL")
	}
}
