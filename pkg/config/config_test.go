package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

func (c *testConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "name: robotdiff\nport: 9090\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "robotdiff" || cfg.Port != 9090 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_CONFIG_TOKEN", "s3cret")
	path := writeConfig(t, "name: x\nport: 1\ntoken: ${TEST_CONFIG_TOKEN}\n")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Token != "s3cret" {
		t.Errorf("token = %q, want expanded env value", cfg.Token)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeConfig(t, "name: x\nport: 0\n")

	var cfg testConfig
	err := Load(path, &cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOrDefault_MissingUsesDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), func() *testConfig {
		return &testConfig{Name: "default", Port: 8080}
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadOrDefault_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "port: 9999\n")

	cfg, err := LoadOrDefault(path, func() *testConfig {
		return &testConfig{Name: "default", Port: 8080}
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Port)
	}
	if cfg.Name != "default" {
		t.Errorf("unset keys should keep defaults, name = %q", cfg.Name)
	}
}

func TestLoadOrDefault_BrokenFileErrors(t *testing.T) {
	path := writeConfig(t, "port: [not a number\n")

	if _, err := LoadOrDefault(path, func() *testConfig {
		return &testConfig{Port: 8080}
	}); err == nil {
		t.Fatal("broken existing file should error, not fall back")
	}
}
