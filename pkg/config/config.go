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

// Config holds all options for one crawl run
type Config struct {
	// Remote API access
	Twitter TwitterConfig `yaml:"twitter" json:"twitter"`

	// Seed accounts, hashtags and crawl window
	Keywords KeywordsConfig `yaml:"keywords" json:"keywords"`

	// Per-phase enable flags
	Steps StepsConfig `yaml:"steps" json:"steps"`

	// Optional attributes requested for accounts and tweets
	UserFields  map[string]bool `yaml:"user_fields" json:"user_fields"`
	TweetFields map[string]bool `yaml:"tweet_fields" json:"tweet_fields"`

	Store      StoreConfig      `yaml:"store" json:"store"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// TwitterConfig holds API credentials and transport settings
type TwitterConfig struct {
	BearerToken string        `yaml:"bearer_token" json:"bearer_token"`
	ClientID    string        `yaml:"client_id" json:"client_id"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// KeywordsConfig describes what to crawl. Accounts and Hashtags are
// comma-separated lists as entered by the operator.
type KeywordsConfig struct {
	Accounts string `yaml:"accounts" json:"accounts"`
	Hashtags string `yaml:"hashtags" json:"hashtags"`
	DateFrom string `yaml:"date_from" json:"date_from"`
	DateTo   string `yaml:"date_to" json:"date_to"`
}

// StepsConfig toggles the four pipeline phases
type StepsConfig struct {
	Seed      bool `yaml:"seed" json:"seed"`
	Timelines bool `yaml:"timelines" json:"timelines"`
	Edges     bool `yaml:"edges" json:"edges"`
	Pruning   bool `yaml:"pruning" json:"pruning"`
}

// StoreConfig selects the graph store backend
type StoreConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	Path       string `yaml:"path" json:"path"`
	DSN        string `yaml:"dsn" json:"dsn"`
	SyncWrites bool   `yaml:"sync_writes" json:"sync_writes"`
}

// RateLimitConfig holds pacing constants shared by all endpoint classes
type RateLimitConfig struct {
	ResetMargin   time.Duration `yaml:"reset_margin" json:"reset_margin"`
	SearchSpacing time.Duration `yaml:"search_spacing" json:"search_spacing"`
	BatchSize     int           `yaml:"batch_size" json:"batch_size"`
}

// CheckpointConfig controls run resumability records
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

// MetricsConfig controls the prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// Store backends
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DateLayout is the wire format for crawl window bounds
const DateLayout = time.RFC3339

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			ClientID: "tweetgraph/1.0",
			BaseURL:  "https://api.twitter.com/2/",
			Timeout:  30 * time.Second,
		},
		Steps: StepsConfig{
			Seed:      true,
			Timelines: true,
			Edges:     true,
			Pruning:   true,
		},
		UserFields: map[string]bool{
			"created_at":        false,
			"description":       false,
			"location":          true,
			"pinned_tweet_id":   false,
			"profile_image_url": false,
			"protected":         false,
			"public_metrics":    false,
			"url":               false,
			"verified":          true,
		},
		TweetFields: map[string]bool{
			"attachments":         false,
			"author_id":           true,
			"conversation_id":     true,
			"created_at":          true,
			"entities":            true,
			"in_reply_to_user_id": true,
			"lang":                true,
			"possibly_sensitive":  false,
			"public_metrics":      false,
			"referenced_tweets":   true,
			"source":              false,
		},
		Store: StoreConfig{
			Backend: BackendBadger,
			Path:    "./data/graph",
		},
		RateLimit: RateLimitConfig{
			ResetMargin:   2 * time.Second,
			SearchSpacing: time.Second,
			BatchSize:     10000,
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// LoadFromEnv loads configuration from TWEETGRAPH_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("TWEETGRAPH_BEARER_TOKEN"); v != "" {
		c.Twitter.BearerToken = v
	}
	if v := os.Getenv("TWEETGRAPH_CLIENT_ID"); v != "" {
		c.Twitter.ClientID = v
	}
	if v := os.Getenv("TWEETGRAPH_BASE_URL"); v != "" {
		c.Twitter.BaseURL = v
	}
	if v := os.Getenv("TWEETGRAPH_ACCOUNTS"); v != "" {
		c.Keywords.Accounts = v
	}
	if v := os.Getenv("TWEETGRAPH_HASHTAGS"); v != "" {
		c.Keywords.Hashtags = v
	}
	if v := os.Getenv("TWEETGRAPH_DATE_FROM"); v != "" {
		c.Keywords.DateFrom = v
	}
	if v := os.Getenv("TWEETGRAPH_DATE_TO"); v != "" {
		c.Keywords.DateTo = v
	}

	for name, dst := range map[string]*bool{
		"TWEETGRAPH_STEP_SEED":      &c.Steps.Seed,
		"TWEETGRAPH_STEP_TIMELINES": &c.Steps.Timelines,
		"TWEETGRAPH_STEP_EDGES":     &c.Steps.Edges,
		"TWEETGRAPH_STEP_PRUNING":   &c.Steps.Pruning,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*dst = b
	}

	if v := os.Getenv("TWEETGRAPH_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("TWEETGRAPH_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("TWEETGRAPH_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("TWEETGRAPH_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TWEETGRAPH_BATCH_SIZE: %w", err))
		} else {
			c.RateLimit.BatchSize = n
		}
	}
	if v := os.Getenv("TWEETGRAPH_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("TWEETGRAPH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TWEETGRAPH_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
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
		"tweetgraph.yaml",
		".tweetgraph.yaml",
		".tweetgraph.yml",
		filepath.Join(home, ".config", "tweetgraph", "config.yaml"),
		filepath.Join(home, ".tweetgraph.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Window returns the parsed crawl window
func (k KeywordsConfig) Window() (from, to time.Time, err error) {
	from, err = ParseDate(k.DateFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date_from: %w", err)
	}
	to, err = ParseDate(k.DateTo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date_to: %w", err)
	}
	return from, to, nil
}

// AccountList returns the configured seed usernames
func (k KeywordsConfig) AccountList() []string {
	return ParseList(k.Accounts)
}

// HashtagList returns the configured hashtags without a leading '#'
func (k KeywordsConfig) HashtagList() []string {
	tags := ParseList(k.Hashtags)
	for i, t := range tags {
		tags[i] = strings.TrimPrefix(t, "#")
	}
	return tags
}

// ParseDate accepts RFC3339 timestamps or plain YYYY-MM-DD dates (UTC midnight)
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected RFC3339 or YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Twitter.BearerToken == "" {
		errs = append(errs, errors.New("bearer token is required"))
	}
	if c.Twitter.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.Twitter.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Steps.Seed && len(c.Keywords.AccountList()) == 0 {
		errs = append(errs, errors.New("at least one seed account is required"))
	}
	if c.Steps.Timelines {
		if len(c.Keywords.HashtagList()) == 0 {
			errs = append(errs, errors.New("at least one hashtag is required"))
		}
		from, to, err := c.Keywords.Window()
		if err != nil {
			errs = append(errs, err)
		} else if !from.Before(to) {
			errs = append(errs, errors.New("date_from must be before date_to"))
		}
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendBadger, BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store path is required for %s backend", c.Store.Backend))
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store dsn is required for postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}

	if c.RateLimit.ResetMargin < 0 {
		errs = append(errs, errors.New("reset margin cannot be negative"))
	}
	if c.RateLimit.SearchSpacing < 0 {
		errs = append(errs, errors.New("search spacing cannot be negative"))
	}
	if c.RateLimit.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
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

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys that are present and non-zero override the current values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["bearer-token"].(string); ok && v != "" {
		c.Twitter.BearerToken = v
	}
	if v, ok := flags["client-id"].(string); ok && v != "" {
		c.Twitter.ClientID = v
	}
	if v, ok := flags["accounts"].(string); ok && v != "" {
		c.Keywords.Accounts = v
	}
	if v, ok := flags["hashtags"].(string); ok && v != "" {
		c.Keywords.Hashtags = v
	}
	if v, ok := flags["from"].(string); ok && v != "" {
		c.Keywords.DateFrom = v
	}
	if v, ok := flags["to"].(string); ok && v != "" {
		c.Keywords.DateTo = v
	}
	if v, ok := flags["skip-seed"].(bool); ok && v {
		c.Steps.Seed = false
	}
	if v, ok := flags["skip-timelines"].(bool); ok && v {
		c.Steps.Timelines = false
	}
	if v, ok := flags["skip-edges"].(bool); ok && v {
		c.Steps.Edges = false
	}
	if v, ok := flags["skip-pruning"].(bool); ok && v {
		c.Steps.Pruning = false
	}
	if v, ok := flags["store"].(string); ok && v != "" {
		c.Store.Backend = v
	}
	if v, ok := flags["store-path"].(string); ok && v != "" {
		c.Store.Path = v
	}
	if v, ok := flags["store-dsn"].(string); ok && v != "" {
		c.Store.DSN = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Addr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	return LoadWithToken(configPath, flags, nil)
}

// LoadWithToken is Load with a fallback consulted when no file, variable or
// flag set the bearer token, e.g. a credential store
func LoadWithToken(configPath string, flags map[string]interface{}, token func() (string, error)) (*Config, error) {
	config, err := Merge(configPath, flags)
	if err != nil {
		return nil, err
	}

	if config.Twitter.BearerToken == "" && token != nil {
		if t, err := token(); err == nil {
			config.Twitter.BearerToken = t
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Merge applies every source in precedence order without validating
func Merge(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tweetgraph.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)
	return config, nil
}
