package chunk

import (
	"context"

	"github.com/ajitpratap0/csvsum/pkg/source"
	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
)

const (
	// DefaultSampleRows is the number of leading rows measured by default.
	DefaultSampleRows = 100

	fieldBytes     = 8  // one parsed float64
	rowHeaderBytes = 24 // slice header of a parsed row
)

// SampleMeasurement is the in-memory footprint of the sampled prefix.
type SampleMeasurement struct {
	// SampleBytes is the combined footprint of every sampled row.
	SampleBytes int64
	// Rows is the number of rows actually sampled.
	Rows int
	// BytesPerRow is SampleBytes divided by Rows, never below 1.
	BytesPerRow int64
}

// RowSize returns the size the planner should divide by. In legacy mode
// that is the whole sample's footprint rather than one row's.
func (m SampleMeasurement) RowSize(legacy bool) int64 {
	if legacy {
		return m.SampleBytes
	}
	return m.BytesPerRow
}

// Estimator measures a leading sample of an input.
type Estimator struct {
	Opener     source.Opener
	SampleRows int
	Options    ReaderOptions
}

// Estimate reads the first min(SampleRows, rows) rows of path and measures
// their footprint. An input with no rows yields an empty_sample error,
// which callers recover from by assuming one byte per row.
func (e *Estimator) Estimate(ctx context.Context, path string) (SampleMeasurement, error) {
	k := e.SampleRows
	if k <= 0 {
		k = DefaultSampleRows
	}

	rc, err := e.Opener.Open(ctx, path)
	if err != nil {
		return SampleMeasurement{}, err
	}
	defer rc.Close()

	br, err := NewBatchReader(rc, k, e.Options)
	if err != nil {
		return SampleMeasurement{}, err
	}
	sample, err := br.Next(ctx)
	if err != nil {
		return SampleMeasurement{}, err
	}
	if sample == nil {
		return SampleMeasurement{}, sumerrors.New(sumerrors.ErrorTypeEmptySample, "input has no rows to sample").
			WithDetail("path", path)
	}

	var total int64
	for _, row := range sample.Rows {
		total += rowHeaderBytes + int64(len(row))*fieldBytes
	}
	return SampleMeasurement{
		SampleBytes: total,
		Rows:        sample.Len(),
		BytesPerRow: max(1, total/int64(sample.Len())),
	}, nil
}
