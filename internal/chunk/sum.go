package chunk

import (
	"math"
	"math/big"
	"strconv"
)

// Sum accumulates numeric fields. Integer literals are added exactly into
// a 128-bit value Carry*2^64 + Ints; everything else lands in Floats.
// Ints always stays in int64 range, so a total that fits in int64 has a
// zero Carry. Combining Sums is associative and commutative for the
// integer part, so integer-only inputs produce identical totals under any
// batch order.
type Sum struct {
	Ints     int64   `json:"ints"`
	Carry    int64   `json:"carry,omitempty"`
	Floats   float64 `json:"floats"`
	HasFloat bool    `json:"has_float"`
}

// AddInt adds an integer field.
func (s Sum) AddInt(v int64) Sum {
	r := s.Ints + v
	switch {
	case v > 0 && r < s.Ints:
		s.Carry++
	case v < 0 && r > s.Ints:
		s.Carry--
	}
	s.Ints = r
	return s
}

// AddFloat adds a non-integer field.
func (s Sum) AddFloat(v float64) Sum {
	s.Floats += v
	s.HasFloat = true
	return s
}

// Add combines two partial sums.
func (s Sum) Add(o Sum) Sum {
	s = s.AddInt(o.Ints)
	s.Carry += o.Carry
	if o.HasFloat {
		s = s.AddFloat(o.Floats)
	}
	return s
}

// IsInteger reports whether the total is an exact integer.
func (s Sum) IsInteger() bool {
	return !s.HasFloat
}

// Int64 returns the integer part and whether it fits in an int64.
func (s Sum) Int64() (int64, bool) {
	return s.Ints, s.Carry == 0
}

// Value returns the total as a float64.
func (s Sum) Value() float64 {
	return math.Ldexp(float64(s.Carry), 64) + float64(s.Ints) + s.Floats
}

// String formats integer totals exactly and float totals in the shortest
// representation that round-trips.
func (s Sum) String() string {
	if !s.IsInteger() {
		return strconv.FormatFloat(s.Value(), 'f', -1, 64)
	}
	if v, ok := s.Int64(); ok {
		return strconv.FormatInt(v, 10)
	}
	return s.bigInt().String()
}

func (s Sum) bigInt() *big.Int {
	n := big.NewInt(s.Carry)
	n.Lsh(n, 64)
	return n.Add(n, big.NewInt(s.Ints))
}
