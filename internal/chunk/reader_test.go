package chunk

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
	"github.com/ajitpratap0/csvsum/pkg/testutil"
)

func newReader(t *testing.T, content string, chunkRows int) *BatchReader {
	t.Helper()
	br, err := NewBatchReader(strings.NewReader(content), chunkRows, ReaderOptions{})
	require.NoError(t, err)
	return br
}

func drain(t *testing.T, br *BatchReader) []*Batch {
	t.Helper()
	var out []*Batch
	for {
		b, err := br.Next(context.Background())
		require.NoError(t, err)
		if b == nil {
			return out
		}
		out = append(out, b)
	}
}

func TestBatchReaderScenarioA(t *testing.T) {
	br := newReader(t, "1,2\n3,4\n5,6\n", 2)
	batches := drain(t, br)

	require.Len(t, batches, 2)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, batches[0].Rows)
	assert.Equal(t, [][]string{{"5", "6"}}, batches[1].Rows)
	assert.Equal(t, int64(2), batches[1].StartRow)
	assert.Equal(t, int64(1), batches[1].Index)
	assert.Equal(t, int64(3), br.RowsRead())
}

func TestBatchingLaw(t *testing.T) {
	for _, tc := range []struct{ rows, chunk int }{
		{0, 3}, {1, 3}, {9, 3}, {10, 3}, {100, 7}, {5, 100},
	} {
		grid := testutil.IntGrid(tc.rows, 3)
		br := newReader(t, testutil.FormatIntRows(grid, ','), tc.chunk)
		batches := drain(t, br)

		var rows [][]string
		for i, b := range batches {
			if i < len(batches)-1 {
				assert.Equal(t, tc.chunk, b.Len())
			}
			rows = append(rows, b.Rows...)
		}
		require.Len(t, rows, tc.rows)
		for i, row := range rows {
			for j, f := range row {
				assert.Equal(t, grid[i][j], mustInt(t, f))
			}
		}
		if tc.rows > 0 {
			want := tc.rows % tc.chunk
			if want == 0 {
				want = tc.chunk
			}
			assert.Equal(t, want, batches[len(batches)-1].Len())
		}
	}
}

func TestNextNDrawsRounds(t *testing.T) {
	br := newReader(t, testutil.FormatIntRows(testutil.IntGrid(7, 1), ','), 2)
	ctx := context.Background()

	round, err := br.NextN(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, round, 3)

	round, err = br.NextN(ctx, 3)
	require.NoError(t, err)
	require.Len(t, round, 1)
	assert.Equal(t, 1, round[0].Len())

	round, err = br.NextN(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, round)
}

func TestBatchReaderConcurrentDraws(t *testing.T) {
	grid := testutil.IntGrid(1000, 2)
	br := newReader(t, testutil.FormatIntRows(grid, ','), 13)

	var mu sync.Mutex
	var all []*Batch
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				b, err := br.Next(context.Background())
				if err != nil || b == nil {
					return
				}
				mu.Lock()
				all = append(all, b)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(all, func(i, j int) bool { return all[i].Index < all[j].Index })
	var next int64
	for _, b := range all {
		assert.Equal(t, next, b.StartRow)
		next += int64(b.Len())
	}
	assert.Equal(t, int64(1000), next)
}

func TestBatchReaderRaggedRow(t *testing.T) {
	br := newReader(t, "1,2\n3\n", 10)
	_, err := br.Next(context.Background())
	require.Error(t, err)
	assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypeNonNumericField))

	var serr *sumerrors.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "field_count", serr.Details["reason"])

	_, again := br.Next(context.Background())
	assert.Equal(t, err, again)
}

func TestBatchReaderOptions(t *testing.T) {
	br, err := NewBatchReader(strings.NewReader("# header\n1;2\n3;4\n"), 10, ReaderOptions{Delimiter: ';', Comment: '#'})
	require.NoError(t, err)
	batches := drain(t, br)
	require.Len(t, batches, 1)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, batches[0].Rows)
}

func TestBatchReaderRejectsNonPositiveChunk(t *testing.T) {
	_, err := NewBatchReader(strings.NewReader(""), 0, ReaderOptions{})
	assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypePlanning))
}

func TestBatchReaderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newReader(t, "1\n", 1).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
