package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.DetectionWindow != 30*time.Minute {
		t.Errorf("DetectionWindow = %v, want 30m", cfg.DetectionWindow)
	}
	if cfg.CooldownWindow != 30*time.Minute {
		t.Errorf("CooldownWindow = %v, want 30m", cfg.CooldownWindow)
	}
	if cfg.ScanInterval != 10*time.Minute {
		t.Errorf("ScanInterval = %v, want 10m", cfg.ScanInterval)
	}
	if cfg.PacingDelay != time.Second {
		t.Errorf("PacingDelay = %v, want 1s", cfg.PacingDelay)
	}
	if cfg.DryRun {
		t.Errorf("DryRun should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DETECTION_WINDOW_MINUTES", "45")
	t.Setenv("COOLDOWN_WINDOW_MINUTES", "60")
	t.Setenv("PACING_DELAY_MS", "250")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")

	cfg := Load()

	if cfg.DetectionWindow != 45*time.Minute {
		t.Errorf("DetectionWindow = %v, want 45m", cfg.DetectionWindow)
	}
	if cfg.CooldownWindow != 60*time.Minute {
		t.Errorf("CooldownWindow = %v, want 60m (independent of detection)", cfg.CooldownWindow)
	}
	if cfg.PacingDelay != 250*time.Millisecond {
		t.Errorf("PacingDelay = %v, want 250ms", cfg.PacingDelay)
	}
	if !cfg.DryRun {
		t.Errorf("DryRun should be true")
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker2:9092" {
		t.Errorf("KafkaBrokers = %v, want two trimmed entries", cfg.KafkaBrokers)
	}
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("DETECTION_WINDOW_MINUTES", "soon")

	cfg := Load()
	if cfg.DetectionWindow != 30*time.Minute {
		t.Errorf("DetectionWindow = %v, want default 30m on unparseable value", cfg.DetectionWindow)
	}
}
