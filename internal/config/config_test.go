package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cards/internal/srs"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", cfg.DatabaseType)
	}
	if cfg.ChapterSize != 8 {
		t.Errorf("ChapterSize = %d, want 8", cfg.ChapterSize)
	}
	if cfg.IncorrectPolicy != srs.PolicyStay {
		t.Errorf("IncorrectPolicy = %q, want stay", cfg.IncorrectPolicy)
	}
	if cfg.SessionDuration != 24*time.Hour {
		t.Errorf("SessionDuration = %v, want 24h", cfg.SessionDuration)
	}
	if cfg.ResetTokenTTL != time.Hour {
		t.Errorf("ResetTokenTTL = %v, want 1h", cfg.ResetTokenTTL)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("CHAPTER_SIZE", "12")
	t.Setenv("INCORRECT_POLICY", "reset")
	t.Setenv("SESSION_DURATION", "2h")
	t.Setenv("DB_PATH", "/tmp/cards-test.db")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "3000" {
		t.Errorf("ServerPort = %q, want 3000", cfg.ServerPort)
	}
	if cfg.ChapterSize != 12 {
		t.Errorf("ChapterSize = %d, want 12", cfg.ChapterSize)
	}
	if cfg.IncorrectPolicy != srs.PolicyReset {
		t.Errorf("IncorrectPolicy = %q, want reset", cfg.IncorrectPolicy)
	}
	if cfg.SessionDuration != 2*time.Hour {
		t.Errorf("SessionDuration = %v, want 2h", cfg.SessionDuration)
	}
	if cfg.DatabasePath != "/tmp/cards-test.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "3000")

	cfg, err := Load([]string{"--port", "9090", "--seed-demo"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if !cfg.SeedDemoData {
		t.Error("SeedDemoData should be enabled by --seed-demo")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "chapter_size: 5\napp_base_url: https://cards.example.com\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChapterSize != 5 {
		t.Errorf("ChapterSize = %d, want 5", cfg.ChapterSize)
	}
	if cfg.AppBaseURL != "https://cards.example.com" {
		t.Errorf("AppBaseURL = %q", cfg.AppBaseURL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "zero chapter size", key: "CHAPTER_SIZE", val: "0"},
		{name: "unknown policy", key: "INCORRECT_POLICY", val: "shuffle"},
		{name: "postgres without url", key: "DATABASE_TYPE", val: "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(nil); err == nil {
				t.Fatalf("Load() with %s=%s should fail", tt.key, tt.val)
			}
		})
	}
}

func TestMissingDatabaseURLError(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "mysql")
	_, err := Load(nil)
	if !errors.Is(err, ErrMissingDatabaseURL) {
		t.Fatalf("Load() error = %v, want ErrMissingDatabaseURL", err)
	}
}
