// Package config resolves csvsum run settings.
//
// # Sources
//
// Settings are layered with spf13/viper, lowest priority first:
//
//  1. DefaultConfig
//  2. a YAML or JSON file passed with --config ("${VAR}" references are
//     expanded from the environment before parsing)
//  3. CSVSUM_* environment variables, e.g. CSVSUM_PERFORMANCE_SAMPLE_ROWS=500
//  4. command-line flags listed in FlagBindings, when explicitly set
//
// # Example file
//
//	performance:
//	  memory_fraction: 0.5
//	  max_threads: 8
//	input:
//	  delimiter: ";"
//	observability:
//	  log_level: debug
//	storage:
//	  s3_region: ${AWS_REGION}
//
// Save and Marshal render a Config back to YAML with gopkg.in/yaml.v3.
package config
