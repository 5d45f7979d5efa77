// Package config loads and validates cosetool's on-disk configuration:
// where keys live, which keystore backend to use, and the default
// algorithm for newly-generated keys.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is cosetool's top-level configuration file shape.
type Config struct {
	// Keys configures where signing/verification keys are read from.
	Keys KeysConfig `yaml:"keys"`

	// Keystore selects a keystore backend. "cosetool keygen" does not
	// read it; generated keys are only written to the PEM files.
	Keystore KeystoreConfig `yaml:"keystore"`

	// Default algorithm (a cose.Algorithm* constant name). "cosetool
	// keygen" does not read it and always generates ES256 keys.
	DefaultAlgorithm string `yaml:"default_algorithm"`
}

// KeysConfig names default key files. The sign/verify/mac commands do
// not read it; they require an explicit --key flag.
type KeysConfig struct {
	Private string `yaml:"private"`
	Public  string `yaml:"public"`
}

// KeystoreConfig selects and configures a keystore backend.
type KeystoreConfig struct {
	Type string `yaml:"type"` // "memory" or "sqlite"
	Path string `yaml:"path"` // sqlite database file; unused for memory
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Keystore.Type {
	case "", "memory":
	case "sqlite":
		if c.Keystore.Path == "" {
			return fmt.Errorf("keystore path is required for sqlite keystore")
		}
	default:
		return fmt.Errorf("unknown keystore type: %q", c.Keystore.Type)
	}
	return nil
}

// Default returns cosetool's default configuration: an in-memory
// keystore and ES256 for newly generated keys.
func Default() *Config {
	return &Config{
		Keys: KeysConfig{
			Private: "./cosetool-priv.cbor",
			Public:  "./cosetool-pub.cbor",
		},
		Keystore: KeystoreConfig{
			Type: "memory",
		},
		DefaultAlgorithm: "ES256",
	}
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
