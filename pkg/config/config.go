// Package config provides the configuration system for csvsum.
// A single Config structure drives every processing mode; it is organized
// into logical sections:
//   - Performance: memory budget, sampling, thread and chunk limits
//   - Input: delimited-text parsing options
//   - Observability: logging, metrics and tracing
//   - Storage: remote object store access
//
// Example usage:
//
//	cfg := config.DefaultConfig()
//	cfg.Performance.MemoryFraction = 0.5
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Config is the unified configuration for a processing run.
type Config struct {
	// Performance settings control memory usage and parallelism
	Performance PerformanceConfig `yaml:"performance" json:"performance" mapstructure:"performance"`

	// Input settings control how delimited text is parsed
	Input InputConfig `yaml:"input" json:"input" mapstructure:"input"`

	// Observability settings for logging, metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`

	// Storage settings for remote inputs
	Storage StorageConfig `yaml:"storage" json:"storage" mapstructure:"storage"`
}

// PerformanceConfig contains the chunk planning and concurrency settings.
type PerformanceConfig struct {
	// MemoryFraction is the share of available system memory the planner may assume usable
	MemoryFraction float64 `yaml:"memory_fraction" json:"memory_fraction" mapstructure:"memory_fraction"`
	// SampleRows is the number of leading rows used to estimate the row size
	SampleRows int `yaml:"sample_rows" json:"sample_rows" mapstructure:"sample_rows"`
	// MaxThreads caps the parallel worker pool (further capped by physical cores)
	MaxThreads int `yaml:"max_threads" json:"max_threads" mapstructure:"max_threads"`
	// MinChunkRows is the lower clamp of the adaptive chunk size
	MinChunkRows int `yaml:"min_chunk_rows" json:"min_chunk_rows" mapstructure:"min_chunk_rows"`
	// MaxChunkRows is the upper clamp of the adaptive chunk size
	MaxChunkRows int `yaml:"max_chunk_rows" json:"max_chunk_rows" mapstructure:"max_chunk_rows"`
	// ChunkRows forces a fixed chunk size when positive (0 = adaptive)
	ChunkRows int `yaml:"chunk_rows" json:"chunk_rows" mapstructure:"chunk_rows"`
	// LegacyRowSize plans with the whole sample's byte size instead of the per-row size
	LegacyRowSize bool `yaml:"legacy_row_size" json:"legacy_row_size" mapstructure:"legacy_row_size"`
}

// InputConfig contains delimited-text parsing options.
type InputConfig struct {
	// Delimiter separates fields within a row (single character)
	Delimiter string `yaml:"delimiter" json:"delimiter" mapstructure:"delimiter"`
	// Comment marks lines to ignore when non-empty (single character)
	Comment string `yaml:"comment" json:"comment" mapstructure:"comment"`
	// TrimSpace strips surrounding whitespace from fields before parsing numbers
	TrimSpace bool `yaml:"trim_space" json:"trim_space" mapstructure:"trim_space"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogFormat selects the encoder (json, console)
	LogFormat string `yaml:"log_format" json:"log_format" mapstructure:"log_format"`
	// EnableMetrics serves Prometheus metrics while a run is in progress
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// MetricsAddr is the listen address of the metrics endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	// EnableTracing exports run and batch spans to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
}

// StorageConfig contains settings for s3:// inputs.
type StorageConfig struct {
	// S3Region overrides the region from the AWS shared config
	S3Region string `yaml:"s3_region" json:"s3_region" mapstructure:"s3_region"`
	// S3Endpoint points the client at an S3-compatible service
	S3Endpoint string `yaml:"s3_endpoint" json:"s3_endpoint" mapstructure:"s3_endpoint"`
	// S3PathStyle forces path-style addressing (MinIO and friends)
	S3PathStyle bool `yaml:"s3_path_style" json:"s3_path_style" mapstructure:"s3_path_style"`
}

// Chunk size bounds and estimator defaults.
const (
	DefaultMemoryFraction = 0.8
	DefaultSampleRows     = 100
	DefaultMaxThreads     = 4
	DefaultMinChunkRows   = 10_000
	DefaultMaxChunkRows   = 100_000
)

// DefaultConfig returns a Config populated with the defaults used when no
// file, environment variable or flag overrides them.
func DefaultConfig() *Config {
	return &Config{
		Performance: PerformanceConfig{
			MemoryFraction: DefaultMemoryFraction,
			SampleRows:     DefaultSampleRows,
			MaxThreads:     DefaultMaxThreads,
			MinChunkRows:   DefaultMinChunkRows,
			MaxChunkRows:   DefaultMaxChunkRows,
			ChunkRows:      0,
			LegacyRowSize:  false,
		},
		Input: InputConfig{
			Delimiter: ",",
			TrimSpace: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogFormat:     "console",
			EnableMetrics: false,
			MetricsAddr:   ":9090",
			EnableTracing: false,
		},
	}
}

// Validate checks the configuration for values the engines cannot work with.
func (c *Config) Validate() error {
	p := c.Performance
	if math.IsNaN(p.MemoryFraction) || p.MemoryFraction <= 0 || p.MemoryFraction > 1 {
		return fmt.Errorf("memory_fraction must be in (0, 1], got %v", p.MemoryFraction)
	}
	if p.SampleRows <= 0 {
		return fmt.Errorf("sample_rows must be positive")
	}
	if p.MaxThreads <= 0 {
		return fmt.Errorf("max_threads must be positive")
	}
	if p.MinChunkRows <= 0 {
		return fmt.Errorf("min_chunk_rows must be positive")
	}
	if p.MaxChunkRows < p.MinChunkRows {
		return fmt.Errorf("max_chunk_rows (%d) cannot be below min_chunk_rows (%d)", p.MaxChunkRows, p.MinChunkRows)
	}
	if p.ChunkRows < 0 {
		return fmt.Errorf("chunk_rows cannot be negative")
	}
	if !validDelimiter(c.Input.Delimiter) {
		return fmt.Errorf("delimiter must be a single character other than a quote or line break, got %q", c.Input.Delimiter)
	}
	if c.Input.Comment != "" {
		if !validDelimiter(c.Input.Comment) {
			return fmt.Errorf("comment must be a single character other than a quote or line break, got %q", c.Input.Comment)
		}
		if c.Input.Comment == c.Input.Delimiter {
			return fmt.Errorf("comment and delimiter cannot be the same character")
		}
	}
	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.Observability.LogFormat)
	}
	return nil
}

// validDelimiter reports whether s is one rune the CSV reader accepts as a
// separator or comment marker.
func validDelimiter(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	switch r {
	case 0, '"', '\r', '\n', utf8.RuneError:
		return false
	}
	return true
}

// DelimiterRune returns the field delimiter as a rune.
func (i *InputConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(i.Delimiter)
	return r
}

// CommentRune returns the comment character, or 0 when comments are disabled.
func (i *InputConfig) CommentRune() rune {
	if i.Comment == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(i.Comment)
	return r
}

// IsAdaptive reports whether the chunk size is planned from memory.
func (p *PerformanceConfig) IsAdaptive() bool {
	return p.ChunkRows <= 0
}
