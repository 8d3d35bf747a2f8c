package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/feeschedule/internal/fetch"
	"github.com/gyeh/feeschedule/internal/locate"
	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
)

// DefaultListingURL is the page listing the published Part B schedules.
const DefaultListingURL = "https://www.pa.gov/agencies/dli/programs-services/workers-compensation/wc-health-care-services-review/wc-fee-schedule/part-b-fee-schedules.html"

// Config holds all runtime configuration for a feeload run.
type Config struct {
	DSN        string
	ListingURL string
	URLs       []string // explicit document URLs; skips the locator
	FilePath   string   // local PDF (plan) or archive Parquet file (replay)
	OutPath    string   // plan export, .csv or .parquet
	LogFormat  string   // "text" or "json"
	LogLevel   string
	ConfigFile string

	Force        bool
	Migrate      bool // apply migrations before ingesting
	FetchWorkers int
	MaxConns     int32
	ArchiveDir   string
	MetricsFile  string
	CronSpec     string

	Fetch          fetch.Options
	LinkFilter     locate.Filter
	HeaderVariants map[string]string // header text -> canonical field name
}

// Default returns a Config with built-in settings.
func Default() Config {
	return Config{
		ListingURL:   DefaultListingURL,
		LogFormat:    "text",
		LogLevel:     "info",
		FetchWorkers: 1,
		Fetch:        fetch.DefaultOptions(),
		LinkFilter:   locate.DefaultFilter,
	}
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	HeaderVariants map[string]string `yaml:"header_variants"`
	LinkFilter     *struct {
		IDPrefix     *string `yaml:"id_prefix"`
		HrefContains *string `yaml:"href_contains"`
	} `yaml:"link_filter"`
	Fetch *struct {
		UserAgent         *string        `yaml:"user_agent"`
		Timeout           *time.Duration `yaml:"timeout"`
		Retries           *uint64        `yaml:"retries"`
		Backoff           *time.Duration `yaml:"backoff"`
		RequestsPerSecond *float64       `yaml:"requests_per_second"`
		MaxBytes          *int64         `yaml:"max_bytes"`
	} `yaml:"fetch"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Keys absent from the file keep their current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if len(yc.HeaderVariants) > 0 {
		if c.HeaderVariants == nil {
			c.HeaderVariants = make(map[string]string, len(yc.HeaderVariants))
		}
		for header, field := range yc.HeaderVariants {
			c.HeaderVariants[header] = field
		}
	}
	if lf := yc.LinkFilter; lf != nil {
		if lf.IDPrefix != nil {
			c.LinkFilter.IDPrefix = *lf.IDPrefix
		}
		if lf.HrefContains != nil {
			c.LinkFilter.HrefContains = *lf.HrefContains
		}
	}
	if f := yc.Fetch; f != nil {
		if f.UserAgent != nil {
			c.Fetch.UserAgent = *f.UserAgent
		}
		if f.Timeout != nil {
			c.Fetch.Timeout = *f.Timeout
		}
		if f.Retries != nil {
			c.Fetch.Retries = *f.Retries
		}
		if f.Backoff != nil {
			c.Fetch.Backoff = *f.Backoff
		}
		if f.RequestsPerSecond != nil {
			c.Fetch.RequestsPerSecond = *f.RequestsPerSecond
		}
		if f.MaxBytes != nil {
			c.Fetch.MaxBytes = *f.MaxBytes
		}
	}
	return c.validateHeaderVariants()
}

// Headers builds the header map from the built-in variants plus any
// configured ones.
func (c *Config) Headers() (*normalize.HeaderMap, error) {
	return normalize.NewHeaderMap(c.HeaderVariants)
}

// validateHeaderVariants checks that every configured variant names a known
// canonical field.
func (c *Config) validateHeaderVariants() error {
	for header, name := range c.HeaderVariants {
		if _, ok := model.FieldByName(name); !ok {
			return fmt.Errorf("header variant %q: unknown field %q in config", header, name)
		}
	}
	return nil
}

// Validate checks the settings every document-processing command shares.
func (c *Config) Validate() error {
	var errs []error
	if len(c.URLs) == 0 && c.FilePath == "" {
		if c.ListingURL == "" {
			errs = append(errs, errors.New("--listing-url, --url or --file is required"))
		} else if err := checkURL(c.ListingURL); err != nil {
			errs = append(errs, fmt.Errorf("--listing-url: %w", err))
		}
	}
	for _, u := range c.URLs {
		if err := checkURL(u); err != nil {
			errs = append(errs, fmt.Errorf("--url %q: %w", u, err))
		}
	}
	if c.FilePath != "" {
		if _, err := os.Stat(c.FilePath); err != nil {
			errs = append(errs, fmt.Errorf("file not accessible: %w", err))
		}
	}
	if c.FetchWorkers < 1 {
		errs = append(errs, fmt.Errorf("--fetch-workers must be at least 1, got %d", c.FetchWorkers))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("--max-conns must not be negative, got %d", c.MaxConns))
	}
	if c.Fetch.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("fetch requests_per_second must not be negative"))
	}
	if c.OutPath != "" && !strings.HasSuffix(c.OutPath, ".csv") && !strings.HasSuffix(c.OutPath, ".parquet") {
		errs = append(errs, fmt.Errorf("--out must end in .csv or .parquet, got %q", c.OutPath))
	}
	if c.CronSpec != "" {
		if _, err := cron.ParseStandard(c.CronSpec); err != nil {
			errs = append(errs, fmt.Errorf("--cron: %w", err))
		}
	}
	if err := c.validateHeaderVariants(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateWithDSN checks the shared settings and the DSN.
func (c *Config) ValidateWithDSN() error {
	err := c.Validate()
	if c.DSN == "" {
		err = errors.Join(err, errors.New("--dsn or DATABASE_URL is required"))
	}
	return err
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
