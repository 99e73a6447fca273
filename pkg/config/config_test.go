package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") error = %v", err)
	}
	if config.Store.Path != "data/threat_intel.db" {
		t.Errorf("Store.Path = %q, expected default", config.Store.Path)
	}
	if config.Store.CacheSize != 10000 {
		t.Errorf("Store.CacheSize = %d, expected 10000", config.Store.CacheSize)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig on a missing file expected an error")
	}
}

func TestLoadConfigOverridesMergeWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("store:\n  cache_size: 500\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Store.CacheSize != 500 {
		t.Errorf("Store.CacheSize = %d, expected override 500", config.Store.CacheSize)
	}
	if config.Store.Path != "data/threat_intel.db" {
		t.Errorf("Store.Path = %q, expected untouched default", config.Store.Path)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, expected override debug", config.Logging.Level)
	}
	if config.Rules.DomainMismatch != 30 {
		t.Errorf("Rules.DomainMismatch = %d, expected default 30", config.Rules.DomainMismatch)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad logging level", "logging:\n  level: loud\n"},
		{"zero cache", "store:\n  cache_size: 0\n"},
		{"zero workers", "performance:\n  workers: 0\n"},
		{"bad format", "logging:\n  format: xml\n"},
	}

	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(test.content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("LoadConfig with %s expected an error", test.name)
		}
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Store.CacheSize = 2500
	config.Feeds.BatchSize = 200
	if err := config.SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Store.CacheSize != 2500 {
		t.Errorf("Store.CacheSize = %d, expected 2500", loaded.Store.CacheSize)
	}
	if loaded.Feeds.BatchSize != 200 {
		t.Errorf("Feeds.BatchSize = %d, expected 200", loaded.Feeds.BatchSize)
	}
}

func TestNewLogger(t *testing.T) {
	config := DefaultConfig()
	log, err := config.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if log == nil {
		t.Fatal("NewLogger() returned nil logger")
	}

	config.Logging.Level = "loud"
	if _, err := config.NewLogger(); err == nil {
		t.Error("NewLogger with invalid level expected an error")
	}
}
