package chunk

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
)

func mustInt(t *testing.T, s string) int64 {
	t.Helper()
	v, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return v
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]string
		want    string
		integer bool
	}{
		{"empty", nil, "0", true},
		{"integers", [][]string{{"1", "2"}, {"3", "4"}}, "10", true},
		{"negative", [][]string{{"-5", "2"}}, "-3", true},
		{"floats", [][]string{{"1.5", "2"}, {"0.25", "1e2"}}, "103.75", false},
		{"beyond int64 parses as float", [][]string{{"18446744073709551616"}}, "18446744073709552000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregator{}.Reduce(&Batch{Rows: tt.rows})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.integer, got.IsInteger())
		})
	}
}

func TestReduceTrimSpace(t *testing.T) {
	b := &Batch{Rows: [][]string{{" 1", "2 "}}}

	_, err := Aggregator{}.Reduce(b)
	assert.Error(t, err)

	got, err := Aggregator{TrimSpace: true}.Reduce(b)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Ints)
}

func TestReduceNonNumeric(t *testing.T) {
	for _, bad := range []string{"abc", "", "NaN", "Inf", "1,5", "1.2.3"} {
		t.Run(strconv.Quote(bad), func(t *testing.T) {
			b := &Batch{StartRow: 10, Rows: [][]string{{"1", "2"}, {"3", bad}}}
			_, err := Aggregator{}.Reduce(b)
			require.Error(t, err)
			assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypeNonNumericField))

			var serr *sumerrors.Error
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, int64(12), serr.Details["row"])
			assert.Equal(t, 2, serr.Details["column"])
			assert.Equal(t, bad, serr.Details["value"])
		})
	}
}

func TestFoldKeepsRowOrder(t *testing.T) {
	agg := Aggregator{}
	acc, err := agg.Fold(Sum{}, &Batch{Rows: [][]string{{"0.1", "0.2"}}})
	require.NoError(t, err)
	acc, err = agg.Fold(acc, &Batch{Rows: [][]string{{"0.3"}}})
	require.NoError(t, err)
	x, y, z := 0.1, 0.2, 0.3
	assert.Equal(t, (x+y)+z, acc.Value())
}

func TestSumCarriesPastInt64(t *testing.T) {
	s := Sum{}.AddInt(math.MaxInt64).AddInt(1)
	assert.True(t, s.IsInteger())
	_, fits := s.Int64()
	assert.False(t, fits)
	assert.Equal(t, "9223372036854775808", s.String())

	s = Sum{}.AddInt(math.MinInt64).AddInt(-1)
	assert.True(t, s.IsInteger())
	assert.Equal(t, "-9223372036854775809", s.String())
	assert.InDelta(t, -9.223372036854775808e18, s.Value(), 1e4)

	s = Sum{}
	for i := 0; i < 4; i++ {
		s = s.AddInt(math.MaxInt64)
	}
	assert.Equal(t, "36893488147419103228", s.String())
}

func TestSumIsExactAcrossOverflowInAnyOrder(t *testing.T) {
	values := []int64{math.MaxInt64, 1, -1}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, order := range orders {
		var s Sum
		for _, i := range order {
			s = s.Add(Sum{}.AddInt(values[i]))
		}
		v, fits := s.Int64()
		require.True(t, fits, "order %v", order)
		assert.Equal(t, int64(math.MaxInt64), v, "order %v", order)
		assert.Equal(t, Sum{Ints: math.MaxInt64}, s, "order %v", order)
	}

	a := Sum{}.AddInt(math.MaxInt64).AddInt(math.MaxInt64)
	b := Sum{}.AddInt(math.MinInt64).AddInt(math.MinInt64)
	assert.Equal(t, Sum{Ints: -2}, a.Add(b))
	assert.Equal(t, a.Add(b), b.Add(a))
}

func TestSumAddIsOrderIndependentForIntegers(t *testing.T) {
	a := Sum{}.AddInt(7)
	b := Sum{}.AddInt(-3).AddInt(100)
	c := Sum{}.AddInt(42)
	assert.Equal(t, a.Add(b).Add(c), c.Add(a).Add(b))
	assert.Equal(t, "146", a.Add(b).Add(c).String())
}
