package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("host default = %q", cfg.Server.Host)
	}
	if cfg.Embedding.Model != "mxbai-embed-large" || cfg.Embedding.Dimensions != 1024 {
		t.Errorf("embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Embedding.QueryPrefix == "" {
		t.Error("query prefix default missing")
	}
	if cfg.Search.DefaultK != 10 || cfg.Search.MaxK != 100 {
		t.Errorf("search defaults: %+v", cfg.Search)
	}
	if cfg.Ingest.Concurrency != 4 {
		t.Errorf("ingest defaults: %+v", cfg.Ingest)
	}
}

func TestLoadExpandsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "storage:\n  database_path: ./data/inventory.db\n  assets_path: ./data/assets.db\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "data", "inventory.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if !filepath.IsAbs(cfg.Storage.AssetsPath) {
		t.Errorf("assets path not absolute: %q", cfg.Storage.AssetsPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Watch.Enabled = true
	cfg.Watch.Inbox = filepath.Join(dir, "inbox")
	cfg.Watch.ContainerID = "bin-1"

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Watch.Enabled || loaded.Watch.ContainerID != "bin-1" {
		t.Errorf("watch config: %+v", loaded.Watch)
	}
}
