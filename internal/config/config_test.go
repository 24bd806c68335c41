package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scatterstore.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadParsesBackendsAndFrontend(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9100
frontend:
  stateful: true
  path: ./data/index.db
  aliases: ["db_1", "fs_1"]
backends:
  - alias: db_1
    type: db
    db:
      path: ./data/storage.db
  - alias: fs_1
    type: fs
    fs:
      root: ./data/blobs
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9100 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if !cfg.Frontend.Stateful || len(cfg.Frontend.Aliases) != 2 {
		t.Errorf("Frontend = %+v", cfg.Frontend)
	}
	if len(cfg.Backends) != 2 {
		t.Fatalf("Backends = %+v, want 2 entries", cfg.Backends)
	}
	if cfg.Backends[0].DB.Name != "storage" {
		t.Errorf("DB.Name default = %q, want storage", cfg.Backends[0].DB.Name)
	}
	if cfg.Backends[0].DB.Timeout != 5*time.Second {
		t.Errorf("DB.Timeout default = %v, want 5s", cfg.Backends[0].DB.Timeout)
	}
	if cfg.Backends[1].FS.MetaTable != ".metadata.json" {
		t.Errorf("FS.MetaTable default = %q", cfg.Backends[1].FS.MetaTable)
	}
}

func TestLoadAppliesServerAndLoggingDefaults(t *testing.T) {
	path := writeConfig(t, "backends: []\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9000 {
		t.Errorf("Server defaults = %+v", cfg.Server)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging defaults = %+v", cfg.Logging)
	}
	if cfg.Frontend.Name != "objects" {
		t.Errorf("Frontend.Name default = %q, want objects", cfg.Frontend.Name)
	}
}

func TestLoadAppliesS3Default(t *testing.T) {
	path := writeConfig(t, `
backends:
  - alias: s3_1
    type: s3
    s3:
      host: example.com
      bucket: blobs
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backends[0].S3.Timeout != 10*time.Second {
		t.Errorf("S3.Timeout default = %v, want 10s", cfg.Backends[0].S3.Timeout)
	}
}

func TestLoadFallsBackToExampleConfig(t *testing.T) {
	dir := t.TempDir()
	examplePath := filepath.Join(dir, "scatterstore.example.yaml")
	if err := os.WriteFile(examplePath, []byte("server:\n  port: 9200\n"), 0o644); err != nil {
		t.Fatalf("writing example config: %v", err)
	}

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("Port = %d, want 9200 from fallback example config", cfg.Server.Port)
	}
}

func TestLoadRejectsMissingConfigWithNoFallback(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error with neither the primary path nor a fallback present")
	}
}
