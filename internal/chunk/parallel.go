package chunk

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/csvsum/pkg/metrics"
	"github.com/ajitpratap0/csvsum/pkg/observability"
	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
)

// ParallelEngine reduces batches on a bounded pool of workers. Each round
// draws up to Workers batches; partial sums flow to a single combiner that
// owns the total, so completion order never races on the accumulator.
//
// The first worker failure cancels the run: no further rounds are drawn,
// batches already submitted drain, and the failure is returned as a
// worker_failure wrapping its cause.
type ParallelEngine struct {
	Aggregator Aggregator
	Workers    int
	Collector  *metrics.Collector // optional
	Logger     *zap.Logger
}

type partial struct {
	sum  Sum
	rows int
}

// Run drains r and returns the combined total.
func (e *ParallelEngine) Run(ctx context.Context, r *BatchReader) (Result, error) {
	log := orNop(e.Logger)
	workers := max(1, e.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	partials := make(chan partial, workers)
	var res Result
	combined := make(chan struct{})
	go func() {
		defer close(combined)
		for p := range partials {
			res.Total = res.Total.Add(p.sum)
			res.Rows += int64(p.rows)
			res.Batches++
		}
	}()

	var drawErr error
	rounds := 0
	for gctx.Err() == nil {
		batches, err := r.NextN(gctx, workers)
		if err != nil {
			drawErr = err
			break
		}
		if len(batches) == 0 {
			break
		}
		rounds++
		for _, b := range batches {
			g.Go(func() error {
				return e.reduce(gctx, b, partials)
			})
		}
	}

	werr := g.Wait()
	close(partials)
	<-combined

	if werr != nil {
		log.Error("parallel run failed", zap.Error(werr))
		return Result{}, werr
	}
	if drawErr == nil {
		drawErr = ctx.Err()
	}
	if drawErr != nil {
		return Result{}, drawErr
	}
	log.Debug("parallel run complete",
		zap.Int("workers", workers),
		zap.Int("rounds", rounds),
		zap.Int("batches", res.Batches))
	return res, nil
}

func (e *ParallelEngine) reduce(ctx context.Context, b *Batch, out chan<- partial) error {
	if e.Collector != nil {
		e.Collector.WorkerStarted()
		defer e.Collector.WorkerDone()
	}
	timer := metrics.NewTimer()

	var sum Sum
	err := observability.TraceBatch(ctx, b.Index, b.Len(), func(context.Context) error {
		var err error
		sum, err = e.Aggregator.Reduce(b)
		return err
	})
	if err != nil {
		return sumerrors.Wrap(err, sumerrors.ErrorTypeWorkerFailure, "batch aggregation failed").
			WithDetail("batch", b.Index)
	}

	out <- partial{sum: sum, rows: b.Len()}
	if e.Collector != nil {
		e.Collector.ObserveBatch(b.Len(), timer.Stop())
	}
	return nil
}
