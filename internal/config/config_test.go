package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWith_Defaults(t *testing.T) {
	path := writeConfig(t, "sitemap:\n  root_url: https://example.com/sitemap.xml\n")

	cfg, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/sitemap.xml", cfg.Sitemap.RootURL)
	assert.Equal(t, []string{"/catalog/", "/snowmobile"}, cfg.Sitemap.Include)
	assert.Equal(t, 3, cfg.Fetcher.MaxAttempts)
	assert.Equal(t, 1500, cfg.Fetcher.BackoffMs)
	assert.Equal(t, BackoffLinear, cfg.Fetcher.Backoff)
	assert.Equal(t, 30*time.Second, cfg.Fetcher.Timeout)
	assert.Equal(t, time.Second, cfg.Crawl.StartInterval)
	assert.Equal(t, 4, cfg.Crawl.Workers)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.NotEmpty(t, cfg.Database.SQLitePath)
	assert.Equal(t, "https://example.com/", cfg.Referer())
}

func TestLoadWith_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
sitemap:
  root_url: https://example.com/sitemap.xml
  include: ["/parts/"]
fetcher:
  max_attempts: 5
  timeout: 10s
  referer: https://example.com/catalog/
crawl:
  start_interval: 250ms
database:
  driver: postgres
  dsn: postgres://user:pass@db/catalog
`)
	t.Setenv("INGEST_CRAWL_WORKERS", "9")

	cfg, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/parts/"}, cfg.Sitemap.Include)
	assert.Equal(t, 5, cfg.Fetcher.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Fetcher.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Crawl.StartInterval)
	assert.Equal(t, 9, cfg.Crawl.Workers)
	assert.Equal(t, "https://example.com/catalog/", cfg.Referer())
	assert.Equal(t, "postgres://user:pass@db/catalog", cfg.Database.PostgresDSN())
}

func TestLoadWith_MissingExplicitFile(t *testing.T) {
	_, err := LoadWith(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Sitemap:  SitemapConfig{RootURL: "https://example.com/sitemap.xml"},
			Fetcher:  FetcherConfig{MaxAttempts: 3},
			Crawl:    CrawlConfig{Workers: 1},
			Database: DatabaseConfig{Driver: DriverPostgres},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "valid", mutate: func(c *Config) {}, ok: true},
		{name: "relative root", mutate: func(c *Config) { c.Sitemap.RootURL = "/sitemap.xml" }},
		{name: "empty root", mutate: func(c *Config) { c.Sitemap.RootURL = "" }},
		{name: "zero attempts", mutate: func(c *Config) { c.Fetcher.MaxAttempts = 0 }},
		{name: "exponential backoff", mutate: func(c *Config) { c.Fetcher.Backoff = BackoffExponential }, ok: true},
		{name: "unknown backoff", mutate: func(c *Config) { c.Fetcher.Backoff = "random" }},
		{name: "zero workers", mutate: func(c *Config) { c.Crawl.Workers = 0 }},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPostgresDSN_FromFields(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "catalog"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=catalog sslmode=disable", db.PostgresDSN())
}
