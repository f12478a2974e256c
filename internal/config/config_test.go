package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediaflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MEDIAFLOW_NTFY_TOPIC", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "mediaflow")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.DefinitionsDir != filepath.Join(tempHome, ".config", "mediaflow", "workflows") {
		t.Fatalf("unexpected definitions dir: %q", cfg.Paths.DefinitionsDir)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "mediaflow.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Workflow.DefaultMaxAttempts != 1 {
		t.Fatalf("expected default max attempts 1, got %d", cfg.Workflow.DefaultMaxAttempts)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Workflow.Workers = 4
	cfg.Workflow.RetryBackoff = 3
	cfg.Logging.Format = "JSON"
	cfg.Notifications.NtfyTopic = "https://ntfy.example/mediaflow"

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %q to exist, got %q exists=%v", path, resolved, exists)
	}
	if loaded.Workflow.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", loaded.Workflow.Workers)
	}
	if loaded.RetryBackoff().Seconds() != 3 {
		t.Fatalf("unexpected retry backoff: %s", loaded.RetryBackoff())
	}
	if loaded.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", loaded.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"workers", func(c *config.Config) { c.Workflow.Workers = -1 }, "workflow.workers"},
		{"max attempts", func(c *config.Config) { c.Workflow.DefaultMaxAttempts = -2 }, "default_max_attempts"},
		{"heartbeat", func(c *config.Config) { c.Workflow.HeartbeatTimeout = 5 }, "heartbeat_timeout"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"ntfy", func(c *config.Config) { c.Notifications.NtfyTopic = "mediaflow" }, "ntfy_topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths]\nstaging_dir = \"/tmp\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}
