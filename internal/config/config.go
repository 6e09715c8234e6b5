// Package config loads swimd's on-disk TOML configuration, following the
// teacher's nested-section, DefaultConfig-first convention.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// ProtocolConfig holds the four tunable protocol constants (§3). Values
// are expressed in milliseconds in the TOML file since BurntSushi/toml has
// no native duration type.
type ProtocolConfig struct {
	TickIntervalMS     int `toml:"tick_interval_ms"`
	ProbeTimeoutMS     int `toml:"probe_timeout_ms"`
	SuspectTimeoutMS   int `toml:"suspect_timeout_ms"`
	IndirectProbeCount int `toml:"indirect_probe_count"`
}

// MetricsConfig controls the optional debug HTTP surface (/metrics,
// /members).
type MetricsConfig struct {
	Addr string `toml:"addr"` // empty disables the server
}

// SnapshotConfig controls the optional sqlite diagnostic sink.
type SnapshotConfig struct {
	DBPath string `toml:"db_path"` // empty disables the store
}

// LoggingConfig controls verbosity.
type LoggingConfig struct {
	Level string `toml:"level"` // "info" or "debug"
}

// Config is the full on-disk configuration.
type Config struct {
	Protocol ProtocolConfig `toml:"protocol"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Logging  LoggingConfig  `toml:"logging"`
}

// DefaultConfig returns the configuration a node runs with when no TOML
// file is supplied, matching the protocol's defaults (§3).
func DefaultConfig() Config {
	return Config{
		Protocol: ProtocolConfig{
			TickIntervalMS:     1000,
			ProbeTimeoutMS:     500,
			SuspectTimeoutMS:   3000,
			IndirectProbeCount: 3,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and decodes the TOML file at path on top of DefaultConfig,
// so a file that only overrides one field leaves the rest at their
// defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// TickInterval returns the configured tick interval as a time.Duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Protocol.TickIntervalMS) * time.Millisecond
}

// ProbeTimeout returns the configured probe timeout as a time.Duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Protocol.ProbeTimeoutMS) * time.Millisecond
}

// SuspectTimeout returns the configured suspicion timeout as a
// time.Duration.
func (c Config) SuspectTimeout() time.Duration {
	return time.Duration(c.Protocol.SuspectTimeoutMS) * time.Millisecond
}
