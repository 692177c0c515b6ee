package chunk

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/csvsum/pkg/metrics"
	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
	"github.com/ajitpratap0/csvsum/pkg/testutil"
)

func runSequential(t *testing.T, content string, chunk int) (Result, error) {
	t.Helper()
	eng := &SequentialEngine{Logger: testutil.TestLogger(t)}
	return eng.Run(context.Background(), newReader(t, content, chunk))
}

func runParallel(t *testing.T, content string, chunk, workers int) (Result, error) {
	t.Helper()
	eng := &ParallelEngine{Workers: workers, Collector: metrics.NewCollector("test-parallel"), Logger: testutil.TestLogger(t)}
	return eng.Run(context.Background(), newReader(t, content, chunk))
}

func TestSequentialEngineScenarioA(t *testing.T) {
	res, err := runSequential(t, "1,2\n3,4\n5,6\n", 2)
	require.NoError(t, err)
	assert.Equal(t, "21", res.Total.String())
	assert.Equal(t, int64(3), res.Rows)
	assert.Equal(t, 2, res.Batches)
}

func TestEnginesOnEmptyInput(t *testing.T) {
	res, err := runSequential(t, "", 10)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	res, err = runParallel(t, "", 10, 4)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestParallelMatchesSequentialForIntegers(t *testing.T) {
	content := testutil.FormatIntRows(testutil.IntGrid(1_000, 5), ',')
	n := int64(5_000)
	want := n * (n + 1) / 2

	seq, err := runSequential(t, content, 7)
	require.NoError(t, err)
	assert.Equal(t, want, seq.Total.Ints)

	for _, workers := range []int{0, 1, 2, 4, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			par, err := runParallel(t, content, 7, workers)
			require.NoError(t, err)
			assert.Equal(t, seq.Total, par.Total)
			assert.Equal(t, seq.Rows, par.Rows)
			assert.Equal(t, seq.Batches, par.Batches)
		})
	}
}

func TestParallelMatchesSequentialForFloats(t *testing.T) {
	var b strings.Builder
	var magnitude float64
	for i := 0; i < 2_000; i++ {
		fmt.Fprintf(&b, "%d.%03d,0.1,%d\n", i, i%1000, -i)
		magnitude += 2*float64(i) + float64(i%1000)/1000 + 0.1
	}
	content := b.String()

	seq, err := runSequential(t, content, 33)
	require.NoError(t, err)
	par, err := runParallel(t, content, 33, 4)
	require.NoError(t, err)

	assert.False(t, seq.Total.IsInteger())
	assert.InDelta(t, seq.Total.Value(), par.Total.Value(), 1e-12*magnitude)
}

func TestEnginesStayExactAcrossInt64Overflow(t *testing.T) {
	content := "9223372036854775807\n1\n-1\n"

	seq, err := runSequential(t, content, 1)
	require.NoError(t, err)
	assert.True(t, seq.Total.IsInteger())
	assert.Equal(t, "9223372036854775807", seq.Total.String())

	for _, workers := range []int{1, 2, 3} {
		par, err := runParallel(t, content, 1, workers)
		require.NoError(t, err)
		assert.Equal(t, seq.Total, par.Total, "workers=%d", workers)
	}
}

func TestSequentialIsIdempotent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "%g,%g\n", float64(i)*0.37, 1/float64(i+1))
	}
	first, err := runSequential(t, b.String(), 50)
	require.NoError(t, err)
	second, err := runSequential(t, b.String(), 50)
	require.NoError(t, err)
	assert.Equal(t, first.Total, second.Total)
}

func TestSequentialNonNumeric(t *testing.T) {
	_, err := runSequential(t, "1,2\n3,x\n", 1)
	require.Error(t, err)
	assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypeNonNumericField))
}

func TestParallelWorkerFailureFailsRun(t *testing.T) {
	rows := testutil.FormatIntRows(testutil.IntGrid(200, 2), ',')
	content := strings.Replace(rows, "75,76\n", "75,oops\n", 1)

	res, err := runParallel(t, content, 3, 4)
	require.Error(t, err)
	assert.Equal(t, Result{}, res)
	assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypeWorkerFailure))
	assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypeNonNumericField))
	assert.Contains(t, err.Error(), "value=oops")
}

func TestParallelReaderFailureFailsRun(t *testing.T) {
	_, err := runParallel(t, "1,2\n3,4\n5\n", 1, 2)
	require.Error(t, err)
	assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypeNonNumericField))
	assert.False(t, sumerrors.IsType(err, sumerrors.ErrorTypeWorkerFailure))
}

func TestParallelHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &ParallelEngine{Workers: 2}
	_, err := eng.Run(ctx, newReader(t, "1\n2\n", 1))
	assert.ErrorIs(t, err, context.Canceled)
}
