package chunk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/csvsum/pkg/compression"
	"github.com/ajitpratap0/csvsum/pkg/config"
	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
	"github.com/ajitpratap0/csvsum/pkg/sysinfo"
	"github.com/ajitpratap0/csvsum/pkg/testutil"
)

func newProcessor(t *testing.T, mutate func(*config.Config), probe *sysinfo.Static) *Processor {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	if probe == nil {
		probe = &sysinfo.Static{Memory: 1 << 30, Cores: 4}
	}
	p, err := NewProcessor(cfg,
		WithMemoryProbe(probe),
		WithCoreCounter(probe),
		WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	return p
}

func TestScenarioAForcedChunkSize(t *testing.T) {
	path := testutil.WriteFile(t, "a.csv", "1,2\n3,4\n5,6\n")
	p := newProcessor(t, func(c *config.Config) { c.Performance.ChunkRows = 2 }, nil)

	res, err := p.RunSequential(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "21", res.Total.String())
	assert.Equal(t, int64(3), res.Rows)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 2, res.ChunkRows)
	assert.Equal(t, 1, res.Threads)
	assert.Equal(t, ModeChunked, res.Mode)

	par, err := p.RunParallel(context.Background(), path, 4)
	require.NoError(t, err)
	assert.Equal(t, res.Total, par.Total)
	assert.Equal(t, 4, par.Threads)
}

func TestScenarioBEmptyFile(t *testing.T) {
	path := testutil.WriteFile(t, "empty.csv", "")
	p := newProcessor(t, nil, nil)
	ctx := context.Background()

	for name, run := range map[string]func() (*RunResult, error){
		"whole":      func() (*RunResult, error) { return p.RunWhole(ctx, path) },
		"sequential": func() (*RunResult, error) { return p.RunSequential(ctx, path) },
		"parallel":   func() (*RunResult, error) { return p.RunParallel(ctx, path, 2) },
	} {
		t.Run(name, func(t *testing.T) {
			res, err := run()
			require.NoError(t, err)
			assert.Equal(t, "0", res.Total.String())
			assert.Zero(t, res.Rows)
		})
	}

	res, err := p.RunSequential(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowSize)
	assert.Equal(t, MaxChunkRows, res.ChunkRows)
}

func TestScenarioCNonNumeric(t *testing.T) {
	path := testutil.WriteFile(t, "bad.csv", "1,2\n3,four\n5,6\n")
	p := newProcessor(t, nil, nil)
	ctx := context.Background()

	for name, run := range map[string]func() (*RunResult, error){
		"whole":      func() (*RunResult, error) { return p.RunWhole(ctx, path) },
		"sequential": func() (*RunResult, error) { return p.RunSequential(ctx, path) },
		"parallel":   func() (*RunResult, error) { return p.RunParallel(ctx, path, 2) },
	} {
		t.Run(name, func(t *testing.T) {
			res, err := run()
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypeNonNumericField))
		})
	}
}

func TestScenarioDNoMemory(t *testing.T) {
	path := testutil.WriteIntCSV(t, testutil.IntGrid(10, 4))
	p := newProcessor(t, nil, &sysinfo.Static{Memory: 0, Cores: 2})

	res, err := p.RunSequential(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, MinChunkRows, res.ChunkRows)
	assert.Equal(t, "820", res.Total.String())
}

func TestPlanUsesPerRowSize(t *testing.T) {
	path := testutil.WriteIntCSV(t, testutil.IntGrid(100, 100))
	probe := &sysinfo.Static{Memory: 100_000_000, Cores: 1}

	fixed, err := newProcessor(t, nil, probe).RunSequential(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(824), fixed.RowSize)
	assert.Equal(t, 97_087, fixed.ChunkRows)

	legacy, err := newProcessor(t, func(c *config.Config) { c.Performance.LegacyRowSize = true }, probe).
		RunSequential(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(82_400), legacy.RowSize)
	assert.Equal(t, MinChunkRows, legacy.ChunkRows)
	assert.Equal(t, fixed.Total, legacy.Total)
}

func TestRunWhole(t *testing.T) {
	path := testutil.WriteIntCSV(t, testutil.IntGrid(50, 3))
	res, err := newProcessor(t, nil, nil).RunWhole(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "11325", res.Total.String())
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, 50, res.ChunkRows)
	assert.Equal(t, ModeWhole, res.Mode)
}

func TestWorkersCappedByPhysicalCores(t *testing.T) {
	p := newProcessor(t, nil, &sysinfo.Static{Memory: 1 << 30, Cores: 2})
	ctx := context.Background()
	assert.Equal(t, 2, p.Workers(ctx, 8))
	assert.Equal(t, 1, p.Workers(ctx, 1))
	assert.Equal(t, 2, p.Workers(ctx, 0))

	p = newProcessor(t, nil, &sysinfo.Static{Memory: 1 << 30, Cores: 16})
	assert.Equal(t, config.DefaultMaxThreads, p.Workers(ctx, 0))
}

func TestProcessorCompressedInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := compression.NewWriter(f, compression.Zstd, compression.Default)
	require.NoError(t, err)
	_, err = w.Write([]byte(testutil.FormatIntRows(testutil.IntGrid(20, 2), ',')))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	res, err := newProcessor(t, nil, nil).RunParallel(context.Background(), path, 2)
	require.NoError(t, err)
	assert.Equal(t, "820", res.Total.String())
}

func TestProcessorMissingFile(t *testing.T) {
	_, err := newProcessor(t, nil, nil).RunSequential(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypeSourceUnavailable))
}

func TestProcessorMemoryProbeFailure(t *testing.T) {
	path := testutil.WriteIntCSV(t, testutil.IntGrid(2, 2))
	p := newProcessor(t, nil, &sysinfo.Static{Err: errors.New("no /proc"), Cores: 1})
	_, err := p.RunSequential(context.Background(), path)
	require.Error(t, err)
	assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypePlanning))
}

func TestNewProcessorRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Performance.MemoryFraction = 2
	_, err := NewProcessor(cfg)
	require.Error(t, err)
	assert.True(t, sumerrors.IsType(err, sumerrors.ErrorTypeConfig))
}

func TestCustomDelimiter(t *testing.T) {
	path := testutil.WriteFile(t, "semi.csv", "1;2\n3;4\n")
	p := newProcessor(t, func(c *config.Config) { c.Input.Delimiter = ";" }, nil)
	res, err := p.RunSequential(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "10", res.Total.String())
}
