package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "TIKTOKGRAPH_"

// Config holds all configuration options for the crawler plugins
type Config struct {
	// Research API credentials and endpoint
	Research ResearchConfig `yaml:"research" json:"research"`

	// Daily call quotas keyed by endpoint category
	Quotas map[string]int `yaml:"quotas" json:"quotas"`

	// Request pacing towards the API
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behaviour for transient API failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Plugin defaults
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ResearchConfig holds Research API specific configuration
type ResearchConfig struct {
	ClientKey    string        `yaml:"client_key" json:"client_key"`
	ClientSecret string        `yaml:"client_secret" json:"client_secret"`
	Account      string        `yaml:"account" json:"account"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds retry configuration for API requests
type RetryConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval"`
	Multiplier      float64       `yaml:"multiplier" json:"multiplier"`
}

// CrawlConfig holds the defaults handed to the plugins
type CrawlConfig struct {
	TotalCount int  `yaml:"total_count" json:"total_count"`
	FetchAll   bool `yaml:"fetch_all" json:"fetch_all"`
	PageSize   int  `yaml:"page_size" json:"page_size"`
	Workers    int  `yaml:"workers" json:"workers"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Address string `yaml:"address" json:"address"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Research: ResearchConfig{
			BaseURL: "https://open.tiktokapis.com",
			Timeout: 30 * time.Second,
		},
		Quotas: map[string]int{
			"followers":  20000,
			"followings": 20000,
			"users_info": 1000,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         5,
		},
		Retry: RetryConfig{
			Enabled:         true,
			MaxAttempts:     3,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
			Multiplier:      2.0,
		},
		Crawl: CrawlConfig{
			TotalCount: 1500,
			FetchAll:   true,
			PageSize:   100,
			Workers:    4,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(EnvPrefix + "CLIENT_KEY"); v != "" {
		c.Research.ClientKey = v
	}
	if v := os.Getenv(EnvPrefix + "CLIENT_SECRET"); v != "" {
		c.Research.ClientSecret = v
	}
	if v := os.Getenv(EnvPrefix + "ACCOUNT"); v != "" {
		c.Research.Account = v
	}
	if v := os.Getenv(EnvPrefix + "BASE_URL"); v != "" {
		c.Research.BaseURL = v
	}

	if v := os.Getenv(EnvPrefix + "REQUESTS_PER_MINUTE"); v != "" {
		val, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sREQUESTS_PER_MINUTE: %w", EnvPrefix, err)
		}
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if v := os.Getenv(EnvPrefix + "TOTAL_COUNT"); v != "" {
		val, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sTOTAL_COUNT: %w", EnvPrefix, err)
		}
		if val > 0 {
			c.Crawl.TotalCount = val
		}
	}

	if v := os.Getenv(EnvPrefix + "FETCH_ALL"); v != "" {
		c.Crawl.FetchAll = strings.ToLower(v) == "true"
	}

	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	if v := os.Getenv(EnvPrefix + "METRICS_ADDR"); v != "" {
		c.Metrics.Address = v
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".tiktokgraph.yaml",
		".tiktokgraph.yml",
		filepath.Join(home, ".config", "tiktokgraph", "config.yaml"),
		filepath.Join(home, ".config", "tiktokgraph", "config.yml"),
		filepath.Join(home, ".tiktokgraph.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
// Credentials are not required here; they may come from the credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.Research.BaseURL == "" {
		errs = append(errs, errors.New("research API base URL is required"))
	}
	if c.Research.Timeout <= 0 {
		errs = append(errs, errors.New("research API timeout must be positive"))
	}

	for category, quota := range c.Quotas {
		if quota <= 0 {
			errs = append(errs, fmt.Errorf("quota for %q must be positive", category))
		}
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retry attempts cannot be negative"))
	}
	if c.Retry.Enabled && c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Crawl.TotalCount <= 0 {
		errs = append(errs, errors.New("total count must be positive"))
	}
	if c.Crawl.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Crawl.PageSize <= 0 || c.Crawl.PageSize > 100 {
		errs = append(errs, errors.New("page size must be between 1 and 100"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["client-key"].(string); ok && v != "" {
		c.Research.ClientKey = v
	}
	if v, ok := flags["client-secret"].(string); ok && v != "" {
		c.Research.ClientSecret = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Research.Account = v
	}
	if v, ok := flags["total-count"].(int); ok && v > 0 {
		c.Crawl.TotalCount = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Crawl.Workers = v
	}
	if v, ok := flags["page-size"].(int); ok {
		c.Crawl.PageSize = v
	}
	if v, ok := flags["fetch-all"].(bool); ok {
		c.Crawl.FetchAll = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Address = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tiktokgraph.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
