package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/csvsum/internal/chunk"
	"github.com/ajitpratap0/csvsum/internal/generate"
	"github.com/ajitpratap0/csvsum/internal/report"
	"github.com/ajitpratap0/csvsum/pkg/compression"
	"github.com/ajitpratap0/csvsum/pkg/config"
	"github.com/ajitpratap0/csvsum/pkg/logger"
	"github.com/ajitpratap0/csvsum/pkg/metrics"
	"github.com/ajitpratap0/csvsum/pkg/observability"
	"github.com/ajitpratap0/csvsum/pkg/source"
	"github.com/ajitpratap0/csvsum/pkg/sysinfo"
)

var version = "0.1.0"

// globalFlags holds the persistent flags that are not configuration keys.
type globalFlags struct {
	configFile string
	output     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "csvsum",
		Short: "csvsum - memory-bounded numeric CSV aggregation",
		Long: `csvsum sums every field of large headerless numeric CSV files.
It can load a file whole, stream it in batches sized from the available
memory, or spread those batches across a pool of workers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Path to a YAML or JSON configuration file")
	pf.StringVar(&g.output, "output", "text", "Report format (text, json)")
	pf.String("log-level", config.DefaultConfig().Observability.LogLevel, "Log level (debug, info, warn, error)")
	pf.String("log-format", config.DefaultConfig().Observability.LogFormat, "Log encoding (console, json)")
	pf.Float64("memory-fraction", config.DefaultMemoryFraction, "Share of available memory the chunk planner may use")
	pf.Int("sample-rows", config.DefaultSampleRows, "Leading rows sampled to estimate the row size")
	pf.Int("max-threads", config.DefaultMaxThreads, "Upper bound on parallel workers (capped by physical cores)")
	pf.Int("chunk-rows", 0, "Force a fixed number of rows per batch (0 = plan from memory)")
	pf.Bool("legacy-row-size", false, "Plan with the whole sample's size instead of the per-row size")
	pf.String("delimiter", ",", "Field delimiter")
	pf.Bool("enable-metrics", false, "Serve Prometheus metrics while processing")
	pf.String("metrics-addr", config.DefaultConfig().Observability.MetricsAddr, "Listen address of the metrics endpoint")
	pf.Bool("trace", false, "Export run and batch spans to stderr")

	root.AddCommand(
		newVersionCmd(),
		newGenerateCmd(g),
		newRunCmd(g, "process", "Process a CSV file in one pass (basic)", chunk.ModeWhole),
		newRunCmd(g, "chunked", "Process a CSV file in memory-bounded chunks", chunk.ModeChunked),
		newRunCmd(g, "multithreaded", "Process a CSV file in chunks across worker threads", chunk.ModeMultithreaded),
		newConfigCmd(g),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "csvsum v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newRunCmd(g *globalFlags, use, short, mode string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, g, mode, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the CSV file, optionally compressed or s3://bucket/key (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// setup loads the configuration and initializes the global logger.
func setup(cmd *cobra.Command, g *globalFlags) (*config.Config, error) {
	if g.output != "text" && g.output != "json" {
		return nil, fmt.Errorf("--output must be text or json, got %q", g.output)
	}
	cfg, err := config.Load(g.configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogFormat,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMode(cmd *cobra.Command, g *globalFlags, mode, path string) error {
	cfg, err := setup(cmd, g)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, logger.RunIDKey, fmt.Sprintf("%s-%d", mode, time.Now().UnixNano()))
	ctx = context.WithValue(ctx, logger.ModeKey, mode)
	log := logger.WithContext(ctx).With(zap.String("component", "csvsum-cli"))

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "csvsum",
			ServiceVersion: version,
			SamplingRate:   1.0,
			Writer:         cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}
	if cfg.Observability.EnableMetrics {
		if _, err := metrics.Serve(ctx, cfg.Observability.MetricsAddr, log); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	host := sysinfo.NewHost()
	opener, err := newOpener(ctx, cfg, host, path, log)
	if err != nil {
		return err
	}
	proc, err := chunk.NewProcessor(cfg,
		chunk.WithOpener(opener),
		chunk.WithMemoryProbe(host),
		chunk.WithCoreCounter(host),
		chunk.WithLogger(log))
	if err != nil {
		return err
	}

	rec := &report.Recorder{Clock: host, Memory: host, Sizer: opener, Logger: log}
	run := rec.Start(ctx, mode, path)

	var res *chunk.RunResult
	switch mode {
	case chunk.ModeWhole:
		res, err = proc.RunWhole(ctx, path)
	case chunk.ModeChunked:
		res, err = proc.RunSequential(ctx, path)
	case chunk.ModeMultithreaded:
		res, err = proc.RunParallel(ctx, path, cfg.Performance.MaxThreads)
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), g.output, run.Finish(ctx, res))
}

// newOpener reads local files, and builds an S3 client only when path
// needs one.
func newOpener(ctx context.Context, cfg *config.Config, host *sysinfo.Host, path string, log *zap.Logger) (source.Opener, error) {
	router := &source.Router{Local: source.NewLocal(host)}
	if source.IsS3(path) {
		s3src, err := source.NewS3(ctx, source.S3Config{
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			PathStyle: cfg.Storage.S3PathStyle,
		}, log)
		if err != nil {
			return nil, err
		}
		router.S3 = s3src
	}
	return router, nil
}

func writeReport(w io.Writer, format string, rep *report.RunReport) error {
	if format == "json" {
		return rep.WriteJSON(w)
	}
	return rep.WriteText(w)
}

func newGenerateCmd(g *globalFlags) *cobra.Command {
	var (
		sizeMB, rows int64
		columns      int
		dir, name    string
		compress     string
		seed         uint64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a CSV file of random integers",
		Long: `Generate a headerless CSV file of random integers between 1 and 1000.
Provide either a target size in MB (-s) or a row count (-r).

Example:
  csvsum generate -r 1000000 -c 100 --compress zstd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sizeMB <= 0 && rows <= 0 {
				return errors.New("please provide either size (-s) or rows (-r) for the CSV file")
			}
			cfg, err := setup(cmd, g)
			if err != nil {
				return err
			}
			alg, err := compression.Parse(compress)
			if err != nil {
				return err
			}

			gen := &generate.Generator{
				Columns:     columns,
				Delimiter:   cfg.Input.DelimiterRune(),
				Compression: alg,
				Seed:        seed,
				Logger:      logger.Get(),
			}
			res, err := gen.Generate(cmd.Context(), generate.Options{Rows: rows, SizeMB: sizeMB, Dir: dir, Name: name})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s successfully\n", res.Path)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&sizeMB, "size", "s", 0, "Size of the CSV file in MB")
	cmd.Flags().Int64VarP(&rows, "rows", "r", 0, "Number of rows in the CSV file")
	cmd.Flags().IntVarP(&columns, "columns", "c", generate.DefaultColumns, "Number of columns in each row")
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to write the file to")
	cmd.Flags().StringVar(&name, "name", "", "File name (default YYYYMMDD_HHMMSS.csv)")
	cmd.Flags().StringVar(&compress, "compress", "", "Compress the output (gzip, zstd, lz4, snappy, s2)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for reproducible output (0 = random)")
	cmd.MarkFlagsMutuallyExclusive("size", "rows")
	return cmd
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "csvsum.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
