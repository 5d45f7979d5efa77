package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qcbor-go/qcbor/internal/config"
)

func TestDefault(t *testing.T) {
	t.Run("creates default config", func(t *testing.T) {
		cfg := config.Default()
		if cfg == nil {
			t.Fatal("expected non-nil config")
		}
		if cfg.Keystore.Type == "" {
			t.Error("expected non-empty keystore type")
		}
		if cfg.DefaultAlgorithm == "" {
			t.Error("expected non-empty default algorithm")
		}
	})

	t.Run("default config is valid", func(t *testing.T) {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown keystore type", func(t *testing.T) {
		cfg := config.Default()
		cfg.Keystore.Type = "postgres"
		if err := cfg.Validate(); err == nil {
			t.Error("should reject unknown keystore type")
		}
	})

	t.Run("rejects sqlite keystore without path", func(t *testing.T) {
		cfg := config.Default()
		cfg.Keystore.Type = "sqlite"
		cfg.Keystore.Path = ""
		if err := cfg.Validate(); err == nil {
			t.Error("should reject sqlite keystore without path")
		}
	})

	t.Run("accepts sqlite keystore with path", func(t *testing.T) {
		cfg := config.Default()
		cfg.Keystore.Type = "sqlite"
		cfg.Keystore.Path = "./keys.db"
		if err := cfg.Validate(); err != nil {
			t.Errorf("valid sqlite config should pass: %v", err)
		}
	})

	t.Run("accepts empty keystore type as memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Keystore.Type = ""
		if err := cfg.Validate(); err != nil {
			t.Errorf("empty keystore type should default to memory: %v", err)
		}
	})
}

func TestSaveLoad(t *testing.T) {
	t.Run("can save and load config", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "config.yaml")

		original := config.Default()
		original.Keys.Private = "/tmp/priv.cbor"

		if err := config.Save(original, configPath); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if loaded.Keys.Private != original.Keys.Private {
			t.Errorf("private key path mismatch: expected %s, got %s", original.Keys.Private, loaded.Keys.Private)
		}
		if loaded.Keystore.Type != original.Keystore.Type {
			t.Errorf("keystore type mismatch")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		if _, err := config.Load("/nonexistent/config.yaml"); err == nil {
			t.Error("should return error for non-existent file")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "bad.yaml")
		_ = os.WriteFile(configPath, []byte("invalid: yaml: content: [[["), 0644)

		if _, err := config.Load(configPath); err == nil {
			t.Error("should return error for invalid YAML")
		}
	})

	t.Run("returns error for config that fails validation", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "invalid.yaml")
		_ = os.WriteFile(configPath, []byte("keystore:\n  type: postgres\n"), 0644)

		if _, err := config.Load(configPath); err == nil {
			t.Error("should return error for config with unknown keystore type")
		}
	})
}
