package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the WordPress harvester.
type Config struct {
	// Target site settings
	Site SiteConfig `yaml:"site" json:"site"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Scraping behavior
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Retry policy for the HTTP transport
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig identifies the WordPress site being harvested.
type SiteConfig struct {
	// URL is the site root, e.g. https://example.com. The REST endpoint
	// is derived from it.
	URL string `yaml:"url" json:"url"`

	// Search is an optional phrase passed to the API as a filter. A source's
	// checkpoint lineage is bound to its search phrase.
	Search string `yaml:"search" json:"search"`

	// Username selects stored application-password credentials. Empty means
	// anonymous access (published posts only).
	Username string `yaml:"username" json:"username"`
}

// OutputConfig holds output locations and export formats.
type OutputConfig struct {
	Dir     string   `yaml:"dir" json:"dir"`
	Name    string   `yaml:"name" json:"name"`
	Formats []string `yaml:"formats" json:"formats"`
}

// ScrapeConfig holds pagination and transform settings.
type ScrapeConfig struct {
	PerPage        int           `yaml:"per_page" json:"per_page"`
	MaxPages       int           `yaml:"max_pages" json:"max_pages"` // 0 means all
	StartPage      int           `yaml:"start_page" json:"start_page"`
	Delay          time.Duration `yaml:"delay" json:"delay"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	StripHTML      bool          `yaml:"strip_html" json:"strip_html"`
	Resume         bool          `yaml:"resume" json:"resume"`
	Update         bool          `yaml:"update" json:"update"`
}

// RetryConfig holds the transport retry policy.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// MaxPerPage is the page-size ceiling imposed by the WordPress REST API.
const MaxPerPage = 100

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:  "./data",
			Name: "wordpress_posts",
		},
		Scrape: ScrapeConfig{
			PerPage:        MaxPerPage,
			StartPage:      1,
			Delay:          time.Second,
			RequestTimeout: 30 * time.Second,
			StripHTML:      true,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    60 * time.Second,
			Multiplier:  2.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from WPHARVEST_* environment variables.
func (c *Config) LoadFromEnv() error {
	if url := os.Getenv("WPHARVEST_URL"); url != "" {
		c.Site.URL = url
	}
	if search := os.Getenv("WPHARVEST_SEARCH"); search != "" {
		c.Site.Search = search
	}
	if user := os.Getenv("WPHARVEST_USERNAME"); user != "" {
		c.Site.Username = user
	}
	if dir := os.Getenv("WPHARVEST_OUTPUT_DIR"); dir != "" {
		c.Output.Dir = dir
	}
	if name := os.Getenv("WPHARVEST_OUTPUT_NAME"); name != "" {
		c.Output.Name = name
	}
	if perPage := os.Getenv("WPHARVEST_PER_PAGE"); perPage != "" {
		var val int
		fmt.Sscanf(perPage, "%d", &val)
		if val > 0 {
			c.Scrape.PerPage = val
		}
	}
	if delay := os.Getenv("WPHARVEST_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d >= 0 {
			c.Scrape.Delay = d
		}
	}
	if level := os.Getenv("WPHARVEST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path checks
// the default locations; finding none is not an error.
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

// findConfigFile searches for a config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".wpharvest.yaml",
		".wpharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "wpharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "wpharvest", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Site.URL == "" {
		errs = append(errs, errors.New("site URL is required"))
	} else if !strings.HasPrefix(c.Site.URL, "http://") && !strings.HasPrefix(c.Site.URL, "https://") {
		errs = append(errs, errors.New("site URL must start with http:// or https://"))
	}

	if c.Output.Dir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.Name == "" {
		errs = append(errs, errors.New("output name is required"))
	}

	validFormats := map[string]bool{"json": true, "csv": true, "xlsx": true}
	for _, f := range c.Output.Formats {
		if !validFormats[strings.ToLower(f)] {
			errs = append(errs, fmt.Errorf("invalid export format: %s", f))
		}
	}

	if c.Scrape.PerPage <= 0 || c.Scrape.PerPage > MaxPerPage {
		errs = append(errs, fmt.Errorf("per_page must be between 1 and %d", MaxPerPage))
	}
	if c.Scrape.StartPage < 1 {
		errs = append(errs, errors.New("start_page must be at least 1"))
	}
	if c.Scrape.MaxPages < 0 {
		errs = append(errs, errors.New("max_pages cannot be negative"))
	}
	if c.Scrape.Delay < 0 {
		errs = append(errs, errors.New("delay cannot be negative"))
	}
	if c.Scrape.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max_attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
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

// SourceURL returns the canonical source identity used by the progress
// store: the site URL with a trailing slash.
func (c *Config) SourceURL() string {
	return strings.TrimRight(c.Site.URL, "/") + "/"
}

// APIURL returns the full posts endpoint for the configured site.
func (c *Config) APIURL() string {
	return strings.TrimRight(c.Site.URL, "/") + "/wp-json/wp/v2/posts"
}

// DatabasePath returns the path of the posts database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Output.Dir, c.Output.Name+".db")
}

// MetadataPath returns the path of the scrape-progress database.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Output.Dir, c.Output.Name+".metadata.db")
}

// ExportPath returns the path of an export file for the given format tag.
func (c *Config) ExportPath(format string) string {
	return filepath.Join(c.Output.Dir, c.Output.Name+"."+strings.ToLower(format))
}

// Save writes the configuration to a YAML file.
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
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if url, ok := flags["url"].(string); ok && url != "" {
		c.Site.URL = url
	}
	if search, ok := flags["search"].(string); ok && search != "" {
		c.Site.Search = search
	}
	if user, ok := flags["username"].(string); ok && user != "" {
		c.Site.Username = user
	}
	if dir, ok := flags["output-dir"].(string); ok && dir != "" {
		c.Output.Dir = dir
	}
	if name, ok := flags["output-name"].(string); ok && name != "" {
		c.Output.Name = name
	}
	if formats, ok := flags["export"].([]string); ok && len(formats) > 0 {
		c.Output.Formats = formats
	}
	if perPage, ok := flags["per-page"].(int); ok && perPage > 0 {
		c.Scrape.PerPage = perPage
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Scrape.MaxPages = maxPages
	}
	if startPage, ok := flags["start-page"].(int); ok && startPage > 0 {
		c.Scrape.StartPage = startPage
	}
	if delay, ok := flags["delay"].(time.Duration); ok && delay >= 0 {
		c.Scrape.Delay = delay
	}
	if noStrip, ok := flags["no-strip-html"].(bool); ok && noStrip {
		c.Scrape.StripHTML = false
	}
	if resume, ok := flags["resume"].(bool); ok && resume {
		c.Scrape.Resume = true
	}
	if update, ok := flags["update"].(bool); ok && update {
		c.Scrape.Update = true
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: command line flags > environment variables > .env file >
// config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".wpharvest.env"))

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
