// Package config handles loading and parsing of scatterstore's YAML
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for scatterstore.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Frontend FrontendConfig  `yaml:"frontend"`
	Backends []BackendConfig `yaml:"backends"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings for the non-core httpapi adapter.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// FrontendConfig selects and configures the dispatcher per spec §6's
// frontend option table. Stateless is the default; setting Stateful turns
// on the persistent id-index and bearer enforcement.
type FrontendConfig struct {
	Stateful bool     `yaml:"stateful"`
	Path     string   `yaml:"path"`    // index file location (stateful only)
	Name     string   `yaml:"name"`    // index table name (stateful only)
	Aliases  []string `yaml:"aliases"` // ordered alias list; length = backend count
}

// BackendConfig names one backend socket and its type-specific option
// struct. Exactly one of DB, FS, S3 is read, selected by Type.
type BackendConfig struct {
	Alias string   `yaml:"alias"`
	Type  string   `yaml:"type"` // "db", "fs", or "s3"
	DB    DBConfig `yaml:"db"`
	FS    FSConfig `yaml:"fs"`
	S3    S3Config `yaml:"s3"`
}

// DBConfig recognizes the DB backend's option table: path, name, timeout.
type DBConfig struct {
	Path    string        `yaml:"path"`
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
}

// FSConfig recognizes the FS backend's option table: root, meta_table,
// timeout.
type FSConfig struct {
	Root      string        `yaml:"root"`
	MetaTable string        `yaml:"meta_table"`
	Timeout   time.Duration `yaml:"timeout"`
}

// S3Config recognizes the S3 backend's option table: host, bucket,
// access_key, secret_key, timeout.
type S3Config struct {
	Host      string        `yaml:"host"`
	Bucket    string        `yaml:"bucket"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LoggingConfig holds structured logging settings consumed by
// internal/logging.Setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML configuration file from path and returns a parsed
// Config, applying defaults for any fields the file leaves unset. If the
// primary path can't be read, it falls back to scatterstore.example.yaml
// in the same or parent directory.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		fallbackPaths := []string{
			filepath.Join(filepath.Dir(path), "scatterstore.example.yaml"),
			filepath.Join(filepath.Dir(path), "..", "scatterstore.example.yaml"),
		}
		var fallbackErr error
		for _, fp := range fallbackPaths {
			data, fallbackErr = os.ReadFile(fp)
			if fallbackErr == nil {
				break
			}
		}
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills in any fields still at their zero value after YAML
// unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Frontend.Name == "" {
		cfg.Frontend.Name = "objects"
	}
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		switch b.Type {
		case "db":
			if b.DB.Name == "" {
				b.DB.Name = "storage"
			}
			if b.DB.Timeout == 0 {
				b.DB.Timeout = 5 * time.Second
			}
		case "fs":
			if b.FS.MetaTable == "" {
				b.FS.MetaTable = ".metadata.json"
			}
			if b.FS.Timeout == 0 {
				b.FS.Timeout = 5 * time.Second
			}
		case "s3":
			if b.S3.Timeout == 0 {
				b.S3.Timeout = 10 * time.Second
			}
		}
	}
}
