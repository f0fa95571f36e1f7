// Package config loads the orchestrator's runtime configuration (§6): the
// STUN URL used only for session establishment, diagnostics log level and
// namespace filter, default asset paths, history ring size, and tick rate.
// Grounded on the teacher's sim/tuning.Tuning (a flat YAML-backed config
// struct loaded with gopkg.in/yaml.v3).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration record.
type Config struct {
	ProtocolVersion     string        `yaml:"protocol_version"`
	StunURL             string        `yaml:"stun_url"`
	Log                 LogConfig     `yaml:"log"`
	DefaultAssets       DefaultAssets `yaml:"default_assets"`
	History             HistoryConfig `yaml:"history"`
	FingerprintInterval int           `yaml:"fingerprint_interval"`
	TickHz              int           `yaml:"tick_hz"`
}

// LogConfig is diagnostics-only: it never gates simulation behavior.
type LogConfig struct {
	Level      string   `yaml:"level"`
	Namespaces []string `yaml:"namespaces"`
}

// DefaultAssets names the fallback mesh/sprite/atlas paths used when the
// operator hasn't selected a file (§6 "Runtime configuration").
type DefaultAssets struct {
	MeshPath   string `yaml:"mesh_path"`
	SpritePath string `yaml:"sprite_path"`
	AtlasPath  string `yaml:"atlas_path"`
}

// HistoryConfig sizes the rollback engine's history ring (§3: H >= 64).
type HistoryConfig struct {
	Size int `yaml:"size"`
}

// Defaults returns the built-in configuration used when no file is given.
func Defaults() Config {
	return Config{
		ProtocolVersion: "1",
		StunURL:         "stun:stun.l.google.com:19302",
		Log: LogConfig{
			Level:      "info",
			Namespaces: []string{"asset", "live", "rollback", "sim", "orchestrator"},
		},
		DefaultAssets: DefaultAssets{
			MeshPath:   "./assets/default/fighter.mesh",
			SpritePath: "./assets/default/fighter.sprite",
			AtlasPath:  "./assets/default/fighter.atlas.json",
		},
		History:             HistoryConfig{Size: 128},
		FingerprintInterval: 16,
		TickHz:              60,
	}
}

// Load reads and parses a YAML config file over Defaults(): fields absent
// from the file keep their default values. history.size is raised to at
// least 64, and a non-positive tick_hz or fingerprint_interval falls back to
// 60 or 16; other fields set explicitly to a zero value stay zero.
func Load(path string) (Config, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.History.Size < 64 {
		cfg.History.Size = 64
	}
	if cfg.TickHz <= 0 {
		cfg.TickHz = 60
	}
	if cfg.FingerprintInterval <= 0 {
		cfg.FingerprintInterval = 16
	}
	return cfg, nil
}
