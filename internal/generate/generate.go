// Package generate writes synthetic numeric CSV files for exercising the
// aggregation modes.
package generate

import (
	"bufio"
	"context"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ajitpratap0/csvsum/pkg/compression"
	"github.com/ajitpratap0/csvsum/pkg/logger"
	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
	"github.com/ajitpratap0/csvsum/pkg/sysinfo"
)

const (
	// DefaultColumns is the number of fields per generated row.
	DefaultColumns = 100
	// DefaultMin and DefaultMax bound the generated values (inclusive).
	DefaultMin = 1
	DefaultMax = 1000

	nameLayout = "20060102_150405"
	mib        = 1024 * 1024
)

// Generator writes rows of uniformly random integers.
type Generator struct {
	Columns     int
	Min         int
	Max         int
	Delimiter   rune // defaults to ','
	Compression compression.Algorithm
	Level       compression.Level
	Clock       sysinfo.Clock // names files; defaults to the host clock
	// Seed makes output reproducible when non-zero.
	Seed   uint64
	Logger *zap.Logger
}

// Options selects how much to write. Exactly one of Rows and SizeMB must
// be positive.
type Options struct {
	Rows   int64
	SizeMB int64
	Dir    string
	// Name defaults to the current time as YYYYMMDD_HHMMSS.csv.
	Name string
}

// Result describes a generated file.
type Result struct {
	Path string
	Rows int64
	// Bytes is the uncompressed size of the written text.
	Bytes int64
}

// Generate writes the file and returns where it went.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Result, error) {
	if (opts.Rows > 0) == (opts.SizeMB > 0) {
		return nil, sumerrors.New(sumerrors.ErrorTypeConfig, "provide either a size in MB or a row count").
			WithDetail("rows", opts.Rows).
			WithDetail("size_mb", opts.SizeMB)
	}
	columns, lo, hi := g.Columns, g.Min, g.Max
	if columns <= 0 {
		columns = DefaultColumns
	}
	if lo == 0 && hi == 0 {
		lo, hi = DefaultMin, DefaultMax
	}
	if hi < lo {
		return nil, sumerrors.Newf(sumerrors.ErrorTypeConfig, "max %d is below min %d", hi, lo)
	}
	delim := g.Delimiter
	if delim == 0 {
		delim = ','
	}

	path := filepath.Join(opts.Dir, g.fileName(opts.Name))
	f, err := os.Create(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeSourceUnavailable, "failed to create output").
			WithDetail("path", path)
	}
	defer f.Close()

	zw, err := compression.NewWriter(f, g.Compression, g.Level)
	if err != nil {
		return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeConfig, "failed to create compressor")
	}
	cw := &countingWriter{w: zw}
	bw := bufio.NewWriterSize(cw, 256*1024)

	rng := g.rng()
	target := opts.SizeMB * mib
	var rows int64
	line := make([]byte, 0, columns*5)
	for {
		if opts.Rows > 0 && rows >= opts.Rows {
			break
		}
		if target > 0 && cw.n+int64(bw.Buffered()) >= target {
			break
		}
		if rows%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line = line[:0]
		for c := 0; c < columns; c++ {
			if c > 0 {
				line = utf8.AppendRune(line, delim)
			}
			line = strconv.AppendInt(line, int64(lo+rng.IntN(hi-lo+1)), 10)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeInternal, "failed to write row")
		}
		rows++
	}

	if err := bw.Flush(); err != nil {
		return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeInternal, "failed to flush output")
	}
	if err := zw.Close(); err != nil {
		return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeInternal, "failed to finish compressed stream")
	}
	if err := f.Close(); err != nil {
		return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeInternal, "failed to close output")
	}

	logger.OrGlobal(g.Logger).Info("generated file",
		zap.String("path", path),
		zap.Int64("rows", rows),
		zap.Int64("bytes", cw.n),
		zap.String("compression", string(g.Compression)))
	return &Result{Path: path, Rows: rows, Bytes: cw.n}, nil
}

func (g *Generator) fileName(name string) string {
	if name == "" {
		clock := g.Clock
		if clock == nil {
			clock = sysinfo.NewHost()
		}
		name = clock.Now().Format(nameLayout) + ".csv"
	}
	return name + g.Compression.Extension()
}

func (g *Generator) rng() *rand.Rand {
	if g.Seed != 0 {
		return rand.New(rand.NewPCG(g.Seed, g.Seed^0x9e3779b97f4a7c15))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
