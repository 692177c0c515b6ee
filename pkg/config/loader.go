package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// CSVSUM_PERFORMANCE_MEMORY_FRACTION=0.5.
const EnvPrefix = "CSVSUM"

// FlagBindings maps configuration keys to the command-line flags that
// override them.
var FlagBindings = map[string]string{
	"performance.memory_fraction":  "memory-fraction",
	"performance.sample_rows":      "sample-rows",
	"performance.max_threads":      "max-threads",
	"performance.chunk_rows":       "chunk-rows",
	"performance.legacy_row_size":  "legacy-row-size",
	"input.delimiter":              "delimiter",
	"observability.log_level":      "log-level",
	"observability.log_format":     "log-format",
	"observability.enable_metrics": "enable-metrics",
	"observability.metrics_addr":   "metrics-addr",
	"observability.enable_tracing": "trace",
}

// Load resolves the configuration from, in increasing priority: defaults,
// the optional file at path, CSVSUM_* environment variables and any flag in
// flags that was explicitly set. The result is validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := readFile(v, path); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		for key, name := range FlagBindings {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// readFile loads a YAML or JSON file into v after substituting ${VAR}
// references with environment values.
func readFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	kind := strings.TrimPrefix(filepath.Ext(path), ".")
	if kind == "" || kind == "yml" {
		kind = "yaml"
	}
	v.SetConfigType(kind)

	content := substituteEnvVars(string(data))
	if err := v.ReadConfig(bytes.NewBufferString(content)); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// setDefaults registers every key of cfg so AutomaticEnv can see it.
func setDefaults(v *viper.Viper, cfg *Config) {
	p := cfg.Performance
	v.SetDefault("performance.memory_fraction", p.MemoryFraction)
	v.SetDefault("performance.sample_rows", p.SampleRows)
	v.SetDefault("performance.max_threads", p.MaxThreads)
	v.SetDefault("performance.min_chunk_rows", p.MinChunkRows)
	v.SetDefault("performance.max_chunk_rows", p.MaxChunkRows)
	v.SetDefault("performance.chunk_rows", p.ChunkRows)
	v.SetDefault("performance.legacy_row_size", p.LegacyRowSize)

	v.SetDefault("input.delimiter", cfg.Input.Delimiter)
	v.SetDefault("input.comment", cfg.Input.Comment)
	v.SetDefault("input.trim_space", cfg.Input.TrimSpace)

	o := cfg.Observability
	v.SetDefault("observability.log_level", o.LogLevel)
	v.SetDefault("observability.log_format", o.LogFormat)
	v.SetDefault("observability.enable_metrics", o.EnableMetrics)
	v.SetDefault("observability.metrics_addr", o.MetricsAddr)
	v.SetDefault("observability.enable_tracing", o.EnableTracing)

	v.SetDefault("storage.s3_region", cfg.Storage.S3Region)
	v.SetDefault("storage.s3_endpoint", cfg.Storage.S3Endpoint)
	v.SetDefault("storage.s3_path_style", cfg.Storage.S3PathStyle)
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// Save writes cfg to a YAML file.
func Save(filePath string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
