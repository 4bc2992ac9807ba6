package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	os.Unsetenv("ENV")
	os.Unsetenv("WORKER_COUNT")
	os.Unsetenv("LISTEN_ADDR")

	cfg := LoadServerConfig()

	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected development environment, got %s", cfg.Environment)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr, got %s", cfg.ListenAddr)
	}
	if cfg.WorkerCount != 1 {
		t.Errorf("expected 1 worker by default, got %d", cfg.WorkerCount)
	}
	if cfg.JobRetentionDays != 30 {
		t.Errorf("expected 30 day retention, got %d", cfg.JobRetentionDays)
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("LISTEN_ADDR", ":9090")

	cfg := LoadServerConfig()

	if cfg.Environment != EnvProduction {
		t.Errorf("expected production environment, got %s", cfg.Environment)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.WorkerCount)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.ListenAddr)
	}
}

func TestLoadServerConfigInvalidValues(t *testing.T) {
	t.Setenv("ENV", "nonsense")
	t.Setenv("WORKER_COUNT", "-5")

	cfg := LoadServerConfig()

	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected fallback to development, got %s", cfg.Environment)
	}
	if cfg.WorkerCount != 1 {
		t.Errorf("expected fallback to 1 worker, got %d", cfg.WorkerCount)
	}
}

func TestDefaultScoringConfig(t *testing.T) {
	cfg := DefaultScoringConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.TrendTolerance != 3 {
		t.Errorf("expected trend tolerance 3, got %d", cfg.TrendTolerance)
	}
	if cfg.MinPeerCount != 5 {
		t.Errorf("expected min peer count 5, got %d", cfg.MinPeerCount)
	}
	if cfg.InterTenantDelay != 100*time.Millisecond {
		t.Errorf("expected 100ms inter-tenant delay, got %v", cfg.InterTenantDelay)
	}
}

func TestScoringConfigValidate(t *testing.T) {
	t.Run("weights must sum to one", func(t *testing.T) {
		cfg := DefaultScoringConfig()
		cfg.LoginWeight = 0.5
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for weight sum")
		}
	})

	t.Run("risk thresholds must be ordered", func(t *testing.T) {
		cfg := DefaultScoringConfig()
		cfg.HighRiskBelow = 90
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for inverted thresholds")
		}
	})

	t.Run("tracked feature total positive", func(t *testing.T) {
		cfg := DefaultScoringConfig()
		cfg.TrackedFeatureTotal = 0
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for zero tracked features")
		}
	})
}

func TestLoadScoringConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadScoringConfig(filepath.Join(t.TempDir(), "absent.yml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TrendTolerance != 3 {
			t.Errorf("expected defaults, got trend tolerance %d", cfg.TrendTolerance)
		}
	})

	t.Run("override file applies", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.yml")
		err := os.WriteFile(path, []byte("trend_tolerance: 5\ntracked_feature_total: 12\n"), 0o600)
		if err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadScoringConfig(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TrendTolerance != 5 {
			t.Errorf("expected trend tolerance 5, got %d", cfg.TrendTolerance)
		}
		if cfg.TrackedFeatureTotal != 12 {
			t.Errorf("expected tracked feature total 12, got %d", cfg.TrackedFeatureTotal)
		}
		// Untouched values keep their defaults
		if cfg.MinPeerCount != 5 {
			t.Errorf("expected min peer count 5, got %d", cfg.MinPeerCount)
		}
	})

	t.Run("invalid override rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.yml")
		err := os.WriteFile(path, []byte("login_weight: 0.9\n"), 0o600)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := LoadScoringConfig(path); err == nil {
			t.Error("expected validation error for bad weights")
		}
	})
}
