package chunk

import (
	"math"

	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
)

const (
	// MinChunkRows is the smallest chunk size the planner returns.
	MinChunkRows = 10_000
	// MaxChunkRows is the largest chunk size the planner returns.
	MaxChunkRows = 100_000
)

// Planner turns a memory budget into a rows-per-batch count clamped to
// [MinRows, MaxRows]. The zero value uses MinChunkRows and MaxChunkRows.
type Planner struct {
	MinRows int
	MaxRows int
}

// Plan uses the default clamp range.
func Plan(available int64, fraction float64, threads int, rowSize int64) (int, error) {
	return Planner{}.Plan(available, fraction, threads, rowSize)
}

// Plan computes floor(floor(floor(available*fraction)/threads)/rowSize) and
// clamps it. Zero threads or a zero row size count as one. Only readings
// that cannot describe a real host (negative memory, a negative or
// non-finite fraction) are rejected.
func (p Planner) Plan(available int64, fraction float64, threads int, rowSize int64) (int, error) {
	lo, hi := p.bounds()

	if available < 0 {
		return 0, sumerrors.New(sumerrors.ErrorTypePlanning, "available memory is negative").
			WithDetail("available", available)
	}
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) || fraction < 0 {
		return 0, sumerrors.New(sumerrors.ErrorTypePlanning, "memory fraction is invalid").
			WithDetail("fraction", fraction)
	}

	usable := math.Floor(float64(available) * fraction)
	perThread := math.Floor(usable / float64(max(1, threads)))
	raw := math.Floor(perThread / float64(max(1, rowSize)))

	switch {
	case raw < float64(lo):
		return lo, nil
	case raw > float64(hi):
		return hi, nil
	default:
		return int(raw), nil
	}
}

func (p Planner) bounds() (int, int) {
	lo, hi := p.MinRows, p.MaxRows
	if lo <= 0 {
		lo = MinChunkRows
	}
	if hi <= 0 {
		hi = MaxChunkRows
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
