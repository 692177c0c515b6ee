package chunk

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/ajitpratap0/csvsum/pkg/config"
	"github.com/ajitpratap0/csvsum/pkg/logger"
	"github.com/ajitpratap0/csvsum/pkg/metrics"
	"github.com/ajitpratap0/csvsum/pkg/observability"
	"github.com/ajitpratap0/csvsum/pkg/source"
	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
	"github.com/ajitpratap0/csvsum/pkg/sysinfo"
)

// Processing modes, also used as metric and span labels.
const (
	ModeWhole         = "process"
	ModeChunked       = "chunked"
	ModeMultithreaded = "multithreaded"
)

// RunResult is what an entry point reports back to its caller.
type RunResult struct {
	Mode      string
	Total     Sum
	Rows      int64
	Batches   int
	Threads   int
	ChunkRows int
	// RowSize is the row-size estimate the plan divided by, 0 when the
	// chunk size was not planned.
	RowSize int64
}

// Processor runs the aggregation modes over inputs opened through a
// source.Opener. It is safe to reuse across runs.
type Processor struct {
	cfg    *config.Config
	opener source.Opener
	memory sysinfo.MemoryProbe
	cores  sysinfo.CoreCounter
	logger *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithOpener sets how inputs are opened. Defaults to local files.
func WithOpener(o source.Opener) Option {
	return func(p *Processor) { p.opener = o }
}

// WithMemoryProbe sets the source of available-memory readings.
func WithMemoryProbe(m sysinfo.MemoryProbe) Option {
	return func(p *Processor) { p.memory = m }
}

// WithCoreCounter sets the source of the physical core count.
func WithCoreCounter(c sysinfo.CoreCounter) Option {
	return func(p *Processor) { p.cores = c }
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates a processor for cfg, which must be valid.
func NewProcessor(cfg *config.Config, opts ...Option) (*Processor, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeConfig, "invalid configuration")
	}

	p := &Processor{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}

	if p.memory == nil || p.cores == nil || p.opener == nil {
		host := sysinfo.NewHost()
		if p.memory == nil {
			p.memory = host
		}
		if p.cores == nil {
			p.cores = host
		}
		if p.opener == nil {
			p.opener = source.NewLocal(host)
		}
	}
	p.logger = logger.OrGlobal(p.logger)
	return p, nil
}

// RunWhole loads every row of path as a single batch and reduces it once.
func (p *Processor) RunWhole(ctx context.Context, path string) (*RunResult, error) {
	return p.run(ctx, ModeWhole, path, 1, func(ctx context.Context, br *BatchReader, c *metrics.Collector) (Result, error) {
		eng := &SequentialEngine{Aggregator: p.aggregator(), Collector: c, Logger: p.logger}
		return eng.Run(ctx, br)
	})
}

// RunSequential streams path in planned batches on one goroutine.
func (p *Processor) RunSequential(ctx context.Context, path string) (*RunResult, error) {
	return p.run(ctx, ModeChunked, path, 1, func(ctx context.Context, br *BatchReader, c *metrics.Collector) (Result, error) {
		eng := &SequentialEngine{Aggregator: p.aggregator(), Collector: c, Logger: p.logger}
		return eng.Run(ctx, br)
	})
}

// RunParallel streams path in planned batches across
// min(maxThreads, physical cores) workers. A maxThreads of zero or less
// uses the configured maximum.
func (p *Processor) RunParallel(ctx context.Context, path string, maxThreads int) (*RunResult, error) {
	threads := p.Workers(ctx, maxThreads)
	return p.run(ctx, ModeMultithreaded, path, threads, func(ctx context.Context, br *BatchReader, c *metrics.Collector) (Result, error) {
		eng := &ParallelEngine{Aggregator: p.aggregator(), Workers: threads, Collector: c, Logger: p.logger}
		return eng.Run(ctx, br)
	})
}

// Workers returns the pool size RunParallel would use.
func (p *Processor) Workers(ctx context.Context, maxThreads int) int {
	if maxThreads <= 0 {
		maxThreads = p.cfg.Performance.MaxThreads
	}
	return max(1, min(maxThreads, p.cores.PhysicalCores(ctx)))
}

type engineFunc func(context.Context, *BatchReader, *metrics.Collector) (Result, error)

func (p *Processor) run(ctx context.Context, mode, path string, threads int, engine engineFunc) (res *RunResult, err error) {
	ctx, span := observability.StartRun(ctx, mode, path)
	collector := metrics.NewCollector(mode)
	log := p.logger.With(zap.String("mode", mode), zap.String("path", path))
	defer func() {
		var rows int64
		if res != nil {
			rows = res.Rows
		}
		observability.EndRun(span, rows, err)
		collector.RunFinished(err)
	}()

	chunkRows, rowSize := math.MaxInt, int64(0)
	if mode != ModeWhole {
		chunkRows, rowSize, err = p.plan(ctx, path, threads, log)
		if err != nil {
			return nil, err
		}
		collector.SetPlan(chunkRows, rowSize)
	}

	rc, err := p.opener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	br, err := NewBatchReader(rc, chunkRows, p.readerOptions())
	if err != nil {
		return nil, err
	}
	out, err := engine(ctx, br, collector)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return nil, err
	}

	res = &RunResult{
		Mode:      mode,
		Total:     out.Total,
		Rows:      out.Rows,
		Batches:   out.Batches,
		Threads:   threads,
		ChunkRows: chunkRows,
		RowSize:   rowSize,
	}
	if mode == ModeWhole {
		res.ChunkRows = int(out.Rows)
	}
	log.Info("run complete",
		zap.String("total", out.Total.String()),
		zap.Int64("rows", out.Rows),
		zap.Int("batches", out.Batches),
		zap.Int("threads", threads))
	return res, nil
}

// plan returns the rows per batch and the row size it was derived from.
func (p *Processor) plan(ctx context.Context, path string, threads int, log *zap.Logger) (int, int64, error) {
	perf := p.cfg.Performance
	if !perf.IsAdaptive() {
		log.Info("using fixed chunk size", zap.Int("chunk_rows", perf.ChunkRows))
		return perf.ChunkRows, 0, nil
	}

	est := &Estimator{Opener: p.opener, SampleRows: perf.SampleRows, Options: p.readerOptions()}
	m, err := est.Estimate(ctx, path)
	rowSize := int64(1)
	switch {
	case err == nil:
		rowSize = m.RowSize(perf.LegacyRowSize)
	case sumerrors.IsType(err, sumerrors.ErrorTypeEmptySample):
		log.Info("empty sample, assuming one byte per row")
	default:
		return 0, 0, err
	}

	available, err := p.memory.AvailableSystemMemory(ctx)
	if err != nil {
		return 0, 0, sumerrors.Wrap(err, sumerrors.ErrorTypePlanning, "failed to read available memory")
	}

	planner := Planner{MinRows: perf.MinChunkRows, MaxRows: perf.MaxChunkRows}
	chunkRows, err := planner.Plan(available, perf.MemoryFraction, threads, rowSize)
	if err != nil {
		return 0, 0, err
	}
	log.Info("planned chunk size",
		zap.Int("chunk_rows", chunkRows),
		zap.Int64("row_size", rowSize),
		zap.Int("sampled_rows", m.Rows),
		zap.Int64("available_memory", available),
		zap.Float64("memory_fraction", perf.MemoryFraction),
		zap.Int("threads", threads),
		zap.Bool("legacy_row_size", perf.LegacyRowSize))
	return chunkRows, rowSize, nil
}

func (p *Processor) aggregator() Aggregator {
	return Aggregator{TrimSpace: p.cfg.Input.TrimSpace}
}

func (p *Processor) readerOptions() ReaderOptions {
	return ReaderOptions{
		Delimiter: p.cfg.Input.DelimiterRune(),
		Comment:   p.cfg.Input.CommentRune(),
	}
}
