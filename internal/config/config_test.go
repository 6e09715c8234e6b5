package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Protocol.TickIntervalMS != 1000 {
		t.Errorf("TickIntervalMS = %d, want 1000", cfg.Protocol.TickIntervalMS)
	}
	if cfg.Protocol.ProbeTimeoutMS != 500 {
		t.Errorf("ProbeTimeoutMS = %d, want 500", cfg.Protocol.ProbeTimeoutMS)
	}
	if cfg.Protocol.SuspectTimeoutMS != 3000 {
		t.Errorf("SuspectTimeoutMS = %d, want 3000", cfg.Protocol.SuspectTimeoutMS)
	}
	if cfg.Protocol.IndirectProbeCount != 3 {
		t.Errorf("IndirectProbeCount = %d, want 3", cfg.Protocol.IndirectProbeCount)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.TickInterval() != time.Second {
		t.Errorf("TickInterval() = %v, want 1s", cfg.TickInterval())
	}
}

func TestLoadOverridesOnlySpecifiedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swimd.toml")
	content := `
[protocol]
suspect_timeout_ms = 6000

[metrics]
addr = "127.0.0.1:9100"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Protocol.SuspectTimeoutMS != 6000 {
		t.Errorf("SuspectTimeoutMS = %d, want 6000", cfg.Protocol.SuspectTimeoutMS)
	}
	if cfg.SuspectTimeout() != 6*time.Second {
		t.Errorf("SuspectTimeout() = %v, want 6s", cfg.SuspectTimeout())
	}
	// Unspecified fields keep their defaults.
	if cfg.Protocol.TickIntervalMS != 1000 {
		t.Errorf("TickIntervalMS = %d, want unchanged default 1000", cfg.Protocol.TickIntervalMS)
	}
	if cfg.Protocol.IndirectProbeCount != 3 {
		t.Errorf("IndirectProbeCount = %d, want unchanged default 3", cfg.Protocol.IndirectProbeCount)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, "127.0.0.1:9100")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml")); err == nil {
		t.Fatal("Load on a missing file returned nil error")
	}
}
