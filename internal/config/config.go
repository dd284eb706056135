package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Sitemap   SitemapConfig   `mapstructure:"sitemap"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// SitemapConfig selects what gets crawled
type SitemapConfig struct {
	RootURL string   `mapstructure:"root_url"`
	Include []string `mapstructure:"include"` // Every substring must appear in a leaf URL
	Exclude []string `mapstructure:"exclude"` // No substring may appear in a leaf URL
}

// FetcherConfig holds origin-facing HTTP configuration
type FetcherConfig struct {
	Timeout              time.Duration     `mapstructure:"timeout"`
	MaxAttempts          int               `mapstructure:"max_attempts"`
	BackoffMs            int               `mapstructure:"backoff_ms"`
	Backoff              string            `mapstructure:"backoff"` // linear (default) or exponential
	RetryAllErrors       bool              `mapstructure:"retry_all_errors"`
	MaxRequestsPerSecond int               `mapstructure:"max_requests_per_second"`
	Referer              string            `mapstructure:"referer"`
	Headers              map[string]string `mapstructure:"headers"`
	Proxies              []string          `mapstructure:"proxies"`
	BlockCooldown        time.Duration     `mapstructure:"block_cooldown"` // Pause after a URL stays blocked, 0 disables
}

// CrawlConfig holds the politeness policy of the scheduler
type CrawlConfig struct {
	Workers       int           `mapstructure:"workers"`
	StartInterval time.Duration `mapstructure:"start_interval"`
	Resume        bool          `mapstructure:"resume"`
}

// ExtractorConfig holds the CSS selectors of the HTML page extractor
type ExtractorConfig struct {
	Selectors SelectorConfig `mapstructure:"selectors"`
}

type SelectorConfig struct {
	Make             string `mapstructure:"make"`
	Model            string `mapstructure:"model"`
	Year             string `mapstructure:"year"`
	Assembly         string `mapstructure:"assembly"`
	AssemblyCodeAttr string `mapstructure:"assembly_code_attr"`
	PartRow          string `mapstructure:"part_row"`
	PartPosition     string `mapstructure:"part_position"`
	PartNumber       string `mapstructure:"part_number"`
	PartDescription  string `mapstructure:"part_description"`
	PartQuantity     string `mapstructure:"part_quantity"`
}

// DatabaseConfig holds catalog store configuration
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"` // postgres or sqlite
	DSN        string `mapstructure:"dsn"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Name       string `mapstructure:"name"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	SQLitePath string `mapstructure:"sqlite_path"`
	MaxConns   int32  `mapstructure:"max_conns"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Password      string        `mapstructure:"password"`
	Database      int           `mapstructure:"database"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	MinIdleTime   time.Duration `mapstructure:"min_idle_time"` // Before retry-failed claims another consumer's message
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// LoadWith loads configuration from an optional YAML file with environment variable overrides.
// An empty path searches for config.yaml in the current directory. Flags bound
// to v take precedence over the file and the defaults.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Sitemap.RootURL == "" {
		return fmt.Errorf("sitemap.root_url is required")
	}
	u, err := url.Parse(c.Sitemap.RootURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("sitemap.root_url %q is not an absolute URL", c.Sitemap.RootURL)
	}
	if c.Fetcher.MaxAttempts < 1 {
		return fmt.Errorf("fetcher.max_attempts must be at least 1, got %d", c.Fetcher.MaxAttempts)
	}
	switch c.Fetcher.Backoff {
	case "", BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("fetcher.backoff must be %q or %q, got %q", BackoffLinear, BackoffExponential, c.Fetcher.Backoff)
	}
	if c.Crawl.Workers < 1 {
		return fmt.Errorf("crawl.workers must be at least 1, got %d", c.Crawl.Workers)
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	return nil
}

// Referer returns the configured referer, defaulting to the origin of the root sitemap.
func (c *Config) Referer() string {
	if c.Fetcher.Referer != "" {
		return c.Fetcher.Referer
	}
	u, err := url.Parse(c.Sitemap.RootURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// PostgresDSN returns database.dsn or builds one from the individual fields.
func (c DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sitemap.root_url", "https://www.partzilla.com/sitemap/i/catalog/0.xml")
	v.SetDefault("sitemap.include", []string{"/catalog/", "/snowmobile"})
	v.SetDefault("sitemap.exclude", []string{})

	v.SetDefault("fetcher.timeout", 30*time.Second)
	v.SetDefault("fetcher.max_attempts", 3)
	v.SetDefault("fetcher.backoff_ms", 1500)
	v.SetDefault("fetcher.backoff", BackoffLinear)
	v.SetDefault("fetcher.retry_all_errors", false)
	v.SetDefault("fetcher.max_requests_per_second", 1)
	v.SetDefault("fetcher.referer", "")
	v.SetDefault("fetcher.proxies", []string{})
	v.SetDefault("fetcher.block_cooldown", time.Duration(0))

	v.SetDefault("crawl.workers", 4)
	v.SetDefault("crawl.start_interval", time.Second)
	v.SetDefault("crawl.resume", false)

	v.SetDefault("extractor.selectors.make", "[data-catalog-make]")
	v.SetDefault("extractor.selectors.model", "[data-catalog-model]")
	v.SetDefault("extractor.selectors.year", "[data-catalog-year]")
	v.SetDefault("extractor.selectors.assembly", "[data-catalog-assembly]")
	v.SetDefault("extractor.selectors.assembly_code_attr", "data-assembly-code")
	v.SetDefault("extractor.selectors.part_row", "table.parts tbody tr")
	v.SetDefault("extractor.selectors.part_position", "td.ref")
	v.SetDefault("extractor.selectors.part_number", "td.part-number")
	v.SetDefault("extractor.selectors.part_description", "td.description")
	v.SetDefault("extractor.selectors.part_quantity", "td.qty")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "oem_catalog")
	v.SetDefault("database.user", "catalog_user")
	v.SetDefault("database.password", "catalog_pass")
	v.SetDefault("database.sqlite_path", filepath.Join(xdg.DataHome, "oem-ingest", "catalog.db"))
	v.SetDefault("database.max_conns", 8)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "ingest_consumer")
	v.SetDefault("redis.min_idle_time", 5*time.Minute)

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "oem_catalog_ingest")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
