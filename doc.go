// Package csvsum sums every field of large, headerless numeric CSV files
// while keeping peak memory within a share of what the host has available.
//
// # Architecture
//
// The aggregation core lives in internal/chunk:
//
//  1. An Estimator measures the in-memory footprint of a leading sample of
//     rows.
//  2. A Planner converts available memory, a memory fraction and a thread
//     count into a rows-per-batch count clamped to [10000, 100000].
//  3. A BatchReader streams the input in batches of that size.
//  4. An Aggregator folds each batch into a Sum. Integer fields are summed
//     exactly; anything else is summed as float64.
//  5. SequentialEngine folds batches in row order; ParallelEngine reduces
//     them on a bounded worker pool and combines partial sums on a single
//     goroutine.
//
// Supporting packages under pkg/ provide configuration (viper), structured
// logging (zap), Prometheus metrics, OpenTelemetry tracing, host probes
// (gopsutil), transparent decompression and S3 inputs.
//
// # Quick Start
//
// Generate a file and sum it three ways:
//
//	csvsum generate -r 1000000 -c 100 --name data.csv
//	csvsum process -f data.csv
//	csvsum chunked -f data.csv
//	csvsum multithreaded -f data.csv --max-threads 8
//
// Inputs ending in .gz, .zst, .lz4, .sz or .s2 are decompressed on the fly,
// and s3://bucket/key paths are streamed from object storage.
//
// # Configuration
//
// Settings resolve from defaults, an optional --config file, CSVSUM_*
// environment variables and flags, in increasing priority:
//
//	performance:
//	  memory_fraction: 0.8
//	  sample_rows: 100
//	  max_threads: 4
//	  chunk_rows: 0        # 0 = plan from memory
//	input:
//	  delimiter: ","
//	observability:
//	  log_level: info
//	  enable_metrics: false
package csvsum
