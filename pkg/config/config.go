package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/rules"
)

// Config is the analyzer configuration tree.
type Config struct {
	// Message extraction settings
	Extract ExtractConfig `yaml:"extract"`

	// Threat-intelligence store settings
	Store StoreConfig `yaml:"store"`

	// Feed download/import settings
	Feeds FeedsConfig `yaml:"feeds"`

	// Translation settings
	Translate TranslateConfig `yaml:"translate"`

	// Feature extraction settings
	Features FeaturesConfig `yaml:"features"`

	// Trained artefact locations
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Verdict aggregation settings
	Aggregation AggregationConfig `yaml:"aggregation"`

	// Rule engine weights
	Rules rules.Weights `yaml:"rules"`

	// Batch analysis settings
	Performance PerformanceConfig `yaml:"performance"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// ExtractConfig bounds attachment hashing.
type ExtractConfig struct {
	// Payloads above the cap get the sentinel hash instead of SHA-256
	AttachmentHashCap int64 `yaml:"attachment_hash_cap"`

	// Treat an oversize attachment as a hard error instead
	FailOnOversize bool `yaml:"fail_on_oversize"`
}

// StoreConfig locates the indicator database.
type StoreConfig struct {
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size"`
}

// FeedsConfig drives the URLhaus/OpenPhish importer.
type FeedsConfig struct {
	URLhausURL       string `yaml:"urlhaus_url"`
	OpenPhishURL     string `yaml:"openphish_url"`
	TimeoutMs        int    `yaml:"timeout_ms"`
	BatchSize        int    `yaml:"batch_size"`
	ProgressInterval int    `yaml:"progress_interval"`
	UserAgent        string `yaml:"user_agent"`
}

// TranslateConfig tunes language detection.
type TranslateConfig struct {
	// Inputs shorter than this many non-space characters skip detection
	MinDetectChars int `yaml:"min_detect_chars"`
}

// FeaturesConfig tunes the text vectoriser.
type FeaturesConfig struct {
	MaxFeatures int `yaml:"max_features"`
}

// ArtifactsConfig locates the fitted feature state and the trained
// classifier.
type ArtifactsConfig struct {
	FeaturesPath string `yaml:"features_path"`
	ModelPath    string `yaml:"model_path"`
}

// AggregationConfig locates the JSON weights object consumed by the
// aggregator. The file itself stays JSON so the training side can
// write it without a YAML dependency.
type AggregationConfig struct {
	WeightsPath string `yaml:"weights_path"`
}

// PerformanceConfig bounds batch analysis.
type PerformanceConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	File   string `yaml:"file"`   // log file path, empty = stderr
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the analyzer default configuration.
func DefaultConfig() *Config {
	return &Config{
		Extract: ExtractConfig{
			AttachmentHashCap: 50 * 1024 * 1024,
			FailOnOversize:    false,
		},
		Store: StoreConfig{
			Path:      "data/threat_intel.db",
			CacheSize: 10000,
		},
		Feeds: FeedsConfig{
			URLhausURL:       "https://urlhaus.abuse.ch/downloads/csv_recent/",
			OpenPhishURL:     "https://openphish.com/feed.txt",
			TimeoutMs:        30000,
			BatchSize:        1000,
			ProgressInterval: 10000,
			UserAgent:        "eml-phishing-analyzer/1.0",
		},
		Translate: TranslateConfig{
			MinDetectChars: 10,
		},
		Features: FeaturesConfig{
			MaxFeatures: 3000,
		},
		Artifacts: ArtifactsConfig{
			FeaturesPath: "models/feature_artifacts.json",
			ModelPath:    "models/classifier.json",
		},
		Aggregation: AggregationConfig{
			WeightsPath: "config/aggregation.json",
		},
		Rules: rules.DefaultWeights(),
		Performance: PerformanceConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file. An empty path returns
// defaults; a named file must exist and overrides defaults key by key.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}

	return config, nil
}

// SaveConfig saves configuration to file.
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Extract.AttachmentHashCap < 1 {
		return fmt.Errorf("attachment_hash_cap must be >= 1")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if c.Store.CacheSize < 1 {
		return fmt.Errorf("cache_size must be >= 1")
	}

	if c.Feeds.TimeoutMs < 100 {
		return fmt.Errorf("feeds timeout_ms must be >= 100")
	}
	if c.Feeds.BatchSize < 1 {
		return fmt.Errorf("feeds batch_size must be >= 1")
	}
	if c.Feeds.ProgressInterval < 1 {
		return fmt.Errorf("feeds progress_interval must be >= 1")
	}

	if c.Translate.MinDetectChars < 0 {
		return fmt.Errorf("min_detect_chars must be >= 0")
	}

	if c.Features.MaxFeatures < 1 {
		return fmt.Errorf("max_features must be >= 1")
	}

	if c.Performance.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	validLevel := false
	for _, level := range validLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	return nil
}

// NewLogger builds a logrus logger from the logging section.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging level: %v", err)
	}
	log.SetLevel(level)

	if c.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if c.Logging.File != "" {
		file, err := os.OpenFile(c.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %v", err)
		}
		log.SetOutput(file)
	}

	return log, nil
}
