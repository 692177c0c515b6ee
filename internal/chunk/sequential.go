package chunk

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/csvsum/pkg/metrics"
	"github.com/ajitpratap0/csvsum/pkg/observability"
)

// Result is the outcome of one engine run.
type Result struct {
	Total   Sum
	Rows    int64
	Batches int
}

// SequentialEngine folds batches into the total on the calling goroutine,
// in row order, so repeated runs over the same input are bit-identical.
type SequentialEngine struct {
	Aggregator Aggregator
	Collector  *metrics.Collector // optional
	Logger     *zap.Logger
}

// Run drains r and returns the total of every field.
func (e *SequentialEngine) Run(ctx context.Context, r *BatchReader) (Result, error) {
	log := orNop(e.Logger)
	var res Result

	for {
		b, err := r.Next(ctx)
		if err != nil {
			return Result{}, err
		}
		if b == nil {
			return res, nil
		}

		timer := metrics.NewTimer()
		err = observability.TraceBatch(ctx, b.Index, b.Len(), func(context.Context) error {
			total, err := e.Aggregator.Fold(res.Total, b)
			if err != nil {
				return err
			}
			res.Total = total
			return nil
		})
		if err != nil {
			return Result{}, err
		}
		res.Rows += int64(b.Len())
		res.Batches++

		if e.Collector != nil {
			e.Collector.ObserveBatch(b.Len(), timer.Stop())
		}
		log.Debug("batch aggregated",
			zap.Int64("batch", b.Index),
			zap.Int("rows", b.Len()),
			zap.Int64("rows_total", res.Rows))
	}
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
