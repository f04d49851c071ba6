package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Site.URL = "https://example.com"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "./data", cfg.Output.Dir)
	assert.Equal(t, "wordpress_posts", cfg.Output.Name)
	assert.Equal(t, MaxPerPage, cfg.Scrape.PerPage)
	assert.Equal(t, 1, cfg.Scrape.StartPage)
	assert.Equal(t, time.Second, cfg.Scrape.Delay)
	assert.True(t, cfg.Scrape.StripHTML)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing url", func(c *Config) { c.Site.URL = "" }, "site URL is required"},
		{"bad scheme", func(c *Config) { c.Site.URL = "ftp://example.com" }, "must start with http"},
		{"per page too large", func(c *Config) { c.Scrape.PerPage = 101 }, "per_page"},
		{"per page zero", func(c *Config) { c.Scrape.PerPage = 0 }, "per_page"},
		{"start page zero", func(c *Config) { c.Scrape.StartPage = 0 }, "start_page"},
		{"negative max pages", func(c *Config) { c.Scrape.MaxPages = -1 }, "max_pages"},
		{"negative delay", func(c *Config) { c.Scrape.Delay = -time.Second }, "delay"},
		{"bad format", func(c *Config) { c.Output.Formats = []string{"pdf"} }, "invalid export format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSourceURL(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "https://example.com/", cfg.SourceURL())

	cfg.Site.URL = "https://example.com/"
	assert.Equal(t, "https://example.com/", cfg.SourceURL())
}

func TestAPIURL(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "https://example.com/wp-json/wp/v2/posts", cfg.APIURL())

	cfg.Site.URL = "https://example.com/"
	assert.Equal(t, "https://example.com/wp-json/wp/v2/posts", cfg.APIURL())
}

func TestOutputPaths(t *testing.T) {
	cfg := validConfig()
	cfg.Output.Dir = "/tmp/out"
	cfg.Output.Name = "posts"

	assert.Equal(t, filepath.Join("/tmp/out", "posts.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/tmp/out", "posts.metadata.db"), cfg.MetadataPath())
	assert.Equal(t, filepath.Join("/tmp/out", "posts.json"), cfg.ExportPath("json"))
	assert.Equal(t, filepath.Join("/tmp/out", "posts.csv"), cfg.ExportPath("CSV"))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
site:
  url: https://blog.example.org
  search: golang
scrape:
  per_page: 50
  delay: 2s
output:
  formats: [json, csv]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://blog.example.org", cfg.Site.URL)
	assert.Equal(t, "golang", cfg.Site.Search)
	assert.Equal(t, 50, cfg.Scrape.PerPage)
	assert.Equal(t, 2*time.Second, cfg.Scrape.Delay)
	assert.Equal(t, []string{"json", "csv"}, cfg.Output.Formats)
}

func TestLoadFromFileMissingIsNotError(t *testing.T) {
	cfg := DefaultConfig()
	// empty path falls back to default locations; none existing is fine
	assert.NoError(t, cfg.LoadFromFile(""))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WPHARVEST_URL", "https://env.example.com")
	t.Setenv("WPHARVEST_SEARCH", "news")
	t.Setenv("WPHARVEST_PER_PAGE", "25")
	t.Setenv("WPHARVEST_DELAY", "500ms")
	t.Setenv("WPHARVEST_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://env.example.com", cfg.Site.URL)
	assert.Equal(t, "news", cfg.Site.Search)
	assert.Equal(t, 25, cfg.Scrape.PerPage)
	assert.Equal(t, 500*time.Millisecond, cfg.Scrape.Delay)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := validConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"url":           "https://flags.example.com",
		"search":        "phrase",
		"per-page":      10,
		"max-pages":     5,
		"start-page":    3,
		"delay":         250 * time.Millisecond,
		"no-strip-html": true,
		"resume":        true,
		"export":        []string{"xlsx"},
	})

	assert.Equal(t, "https://flags.example.com", cfg.Site.URL)
	assert.Equal(t, "phrase", cfg.Site.Search)
	assert.Equal(t, 10, cfg.Scrape.PerPage)
	assert.Equal(t, 5, cfg.Scrape.MaxPages)
	assert.Equal(t, 3, cfg.Scrape.StartPage)
	assert.Equal(t, 250*time.Millisecond, cfg.Scrape.Delay)
	assert.False(t, cfg.Scrape.StripHTML)
	assert.True(t, cfg.Scrape.Resume)
	assert.Equal(t, []string{"xlsx"}, cfg.Output.Formats)
}

func TestMergeIgnoresZeroValues(t *testing.T) {
	cfg := validConfig()
	original := cfg.Scrape.PerPage

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"url":      "",
		"per-page": 0,
	})

	assert.Equal(t, "https://example.com", cfg.Site.URL)
	assert.Equal(t, original, cfg.Scrape.PerPage)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := validConfig()
	cfg.Site.Search = "roundtrip"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "https://example.com", loaded.Site.URL)
	assert.Equal(t, "roundtrip", loaded.Site.Search)
}
