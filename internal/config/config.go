// Package config carries the engine's run configuration. Everything is
// explicit and passed down from here; the core holds no ambient state.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	// DataDir is the root input panel files are resolved against.
	DataDir string `yaml:"data_dir"`
	// OutputDir receives the per-signal CSV outputs.
	OutputDir string `yaml:"output_dir"`
	// ReportDir receives per-run JSON reports.
	ReportDir string `yaml:"report_dir"`
	// SignalDir holds the declarative signal definitions (one YAML each).
	SignalDir string `yaml:"signal_dir"`
	// Workers bounds the per-entity phase parallelism.
	Workers int `yaml:"workers"`
	// ChunkEntities is how many entities one worker batch covers.
	ChunkEntities int `yaml:"chunk_entities"`
	// MetricsAddr, when set, serves /health and /metrics during the run.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
	// Postgres, when set, mirrors signal output into a database sink.
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// PostgresConfig configures the optional database output sink.
type PostgresConfig struct {
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	BatchSize int    `yaml:"batch_size"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir:       "data",
		OutputDir:     "out/predictors",
		ReportDir:     "out/reports",
		SignalDir:     "configs/signals",
		Workers:       runtime.NumCPU(),
		ChunkEntities: 256,
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	if c.ChunkEntities < 1 {
		return fmt.Errorf("config: chunk_entities must be at least 1, got %d", c.ChunkEntities)
	}
	if c.Postgres != nil {
		if c.Postgres.DSN == "" {
			return fmt.Errorf("config: postgres sink needs a dsn")
		}
		if c.Postgres.Table == "" {
			return fmt.Errorf("config: postgres sink needs a table")
		}
	}
	return nil
}
