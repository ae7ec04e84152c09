// Package config loads typed configuration for the engine, the ClickHouse
// tape-generation tooling, and the gRPC/HTTP service from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Environment string `yaml:"environment"`

	Server     ServerConfig     `yaml:"server"`
	Engine     EngineConfig     `yaml:"engine"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Arrow      ArrowConfig      `yaml:"arrow"`
}

// ServerConfig configures the gRPC and HTTP listeners.
type ServerConfig struct {
	GRPCPort int `yaml:"grpc_port"`
	HTTPPort int `yaml:"http_port"`
}

// EngineConfig configures the core backtest run and service-level fan-out.
type EngineConfig struct {
	BaseDir           string  `yaml:"base_dir"`
	InitialBalance    float64 `yaml:"initial_balance"`
	AnnualizationBars int     `yaml:"annualization_bars"`
	MaxWorkers        int     `yaml:"max_workers"`
}

// ClickHouseConfig configures the tape-generation tool's source database.
type ClickHouseConfig struct {
	DSN   string `yaml:"dsn"`
	DB    string `yaml:"database"`
	Table string `yaml:"table"`
}

// ArrowConfig configures the Arrow IPC export path.
type ArrowConfig struct {
	BatchSize int `yaml:"batch_size"`
}

func defaults() *Config {
	return &Config{
		Environment: "development",
		Server:      ServerConfig{GRPCPort: 9091, HTTPPort: 8080},
		Engine: EngineConfig{
			BaseDir:           "./data",
			InitialBalance:    100_000,
			AnnualizationBars: 252 * 24 * 60,
			MaxWorkers:        0, // 0 means runtime.NumCPU()
		},
		ClickHouse: ClickHouseConfig{DSN: "clickhouse://localhost:9000", DB: "default", Table: "bars"},
		Arrow:      ArrowConfig{BatchSize: 4096},
	}
}

// Load reads config from path, falling back to built-in defaults for any
// field the file omits. An empty or nonexistent path is not an error: Load
// returns the defaults. Environment overrides are applied in every case.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHRONOTAPE_CLICKHOUSE_DSN"); v != "" {
		cfg.ClickHouse.DSN = v
	}
	if v := os.Getenv("CHRONOTAPE_BASE_DIR"); v != "" {
		cfg.Engine.BaseDir = v
	}
}
