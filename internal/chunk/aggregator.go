package chunk

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
)

// Aggregator reduces batches to sums. It holds no mutable state and is
// safe for concurrent use on disjoint batches.
type Aggregator struct {
	// TrimSpace strips surrounding whitespace before parsing a field.
	TrimSpace bool
}

// Reduce sums every field of every row in b.
func (a Aggregator) Reduce(b *Batch) (Sum, error) {
	return a.Fold(Sum{}, b)
}

// Fold adds every field of b to acc in row order.
func (a Aggregator) Fold(acc Sum, b *Batch) (Sum, error) {
	for i, row := range b.Rows {
		for j, field := range row {
			if a.TrimSpace {
				field = strings.TrimSpace(field)
			}
			iv, fv, isInt, err := parseField(field)
			if err != nil {
				return Sum{}, sumerrors.Wrap(err, sumerrors.ErrorTypeNonNumericField, "field is not numeric").
					WithDetail("row", b.StartRow+int64(i)+1).
					WithDetail("column", j+1).
					WithDetail("value", field)
			}
			if isInt {
				acc = acc.AddInt(iv)
			} else {
				acc = acc.AddFloat(fv)
			}
		}
	}
	return acc, nil
}

var errNotFinite = errors.New("value is not finite")

// parseField parses an integer literal exactly and anything else as a
// finite float64. Integers beyond int64 are parsed as floats.
func parseField(s string) (int64, float64, bool, error) {
	iv, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return iv, 0, true, nil
	}
	fv, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, 0, false, err
	}
	if math.IsNaN(fv) || math.IsInf(fv, 0) {
		return 0, 0, false, errNotFinite
	}
	return 0, fv, false, nil
}
