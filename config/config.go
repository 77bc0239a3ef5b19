package config

import (
	"fmt"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	UserAgent      string
	AcceptLanguage string

	// Timeout bounds individual lot-page requests; CatalogTimeout bounds
	// the initial catalog fetch, which tends to be the heaviest page.
	Timeout        time.Duration
	CatalogTimeout time.Duration

	// Retry policy for transient statuses (429 and most 5xx).
	MaxRetries    int
	BackoffFactor float64
	BackoffMax    time.Duration

	// Pagination: courtesy delay between catalog pages and the hard cap
	// on pages crawled for one catalog.
	PageDelay time.Duration
	MaxPages  int

	// ValidatorCacheSize bounds the per-URL ETag/Last-Modified cache used
	// for conditional revisits. Zero disables the cache.
	ValidatorCacheSize int

	OutputFile   string
	OutputFormat string // csv, json, or dual
	MetricsAddr  string
	Verbose      bool

	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
}

// DefaultConfig returns conservative defaults tuned for the auction site.
func DefaultConfig() *Config {
	return &Config{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/124.0 Safari/537.36",
		AcceptLanguage:     "en-US,en;q=0.9",
		Timeout:            20 * time.Second,
		CatalogTimeout:     25 * time.Second,
		MaxRetries:         3,
		BackoffFactor:      1.6,
		BackoffMax:         10 * time.Second,
		PageDelay:          900 * time.Millisecond,
		MaxPages:           120,
		ValidatorCacheSize: 0,
		OutputFile:         "output/lots.csv",
		OutputFormat:       "csv",
		Verbose:            false,
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      10000,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.BackoffFactor <= 1 {
		return fmt.Errorf("backoff factor must exceed 1")
	}
	if c.BackoffMax <= 0 {
		return fmt.Errorf("backoff max must be positive")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.ValidatorCacheSize < 0 {
		return fmt.Errorf("validator cache size cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	return nil
}
