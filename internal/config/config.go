// Package config loads the optional chartfold.yaml settings for a chart
// and locates chart roots.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chartfold/chartfold/internal/generate"
	"github.com/chartfold/chartfold/internal/snapshot"
)

// FileName is the optional per-chart configuration file.
const FileName = "chartfold.yaml"

// Config holds chartfold's tunable settings.
type Config struct {
	// HelpersFile names the generated shared-template file under
	// templates/.
	HelpersFile string `yaml:"helpersFile"`

	// SnapshotRetention caps how many snapshots are kept per chart.
	SnapshotRetention int `yaml:"snapshotRetention"`

	// ExcludeFiles lists extra manifest files the parser should skip.
	ExcludeFiles []string `yaml:"excludeFiles"`
}

// Default returns the settings used when no chartfold.yaml exists.
func Default() *Config {
	return &Config{
		HelpersFile:       generate.HelpersFileName,
		SnapshotRetention: snapshot.DefaultRetention,
	}
}

// Load reads dir/chartfold.yaml, falling back to defaults when the file
// does not exist. Settings left empty keep their defaults.
func Load(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FileName, err)
	}

	if cfg.HelpersFile == "" {
		cfg.HelpersFile = generate.HelpersFileName
	}
	if cfg.SnapshotRetention <= 0 {
		cfg.SnapshotRetention = snapshot.DefaultRetention
	}
	return cfg, nil
}

// FindChart walks upward from start looking for a directory containing
// Chart.yaml.
func FindChart(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "Chart.yaml")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no Chart.yaml found in %s or above", start)
		}
		dir = parent
	}
}
