package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReturnsDefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != 9091 || cfg.Server.HTTPPort != 8080 {
		t.Fatalf("unexpected default server config: %+v", cfg.Server)
	}
}

func TestLoadReadsYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "environment: production\nserver:\n  grpc_port: 7000\n  http_port: 7001\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "production" || cfg.Server.GRPCPort != 7000 || cfg.Server.HTTPPort != 7001 {
		t.Fatalf("unexpected loaded config: %+v", cfg)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	t.Setenv("CHRONOTAPE_BASE_DIR", "/tmp/override")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.BaseDir != "/tmp/override" {
		t.Fatalf("expected env override to win, got %q", cfg.Engine.BaseDir)
	}
}
