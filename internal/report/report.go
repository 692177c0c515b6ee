// Package report captures run statistics and prints them in the layout
// operators of the csv tooling are used to, or as JSON.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/csvsum/internal/chunk"
	"github.com/ajitpratap0/csvsum/pkg/sysinfo"
)

const mib = 1024 * 1024

// RunReport describes one finished run.
type RunReport struct {
	Mode              string
	Path              string
	Start             time.Time
	End               time.Time
	Elapsed           time.Duration
	FileSizeBytes     int64
	MemoryBeforeBytes int64
	MemoryAfterBytes  int64
	Total             chunk.Sum
	Rows              int64
	Threads           int
	ChunkRows         int
}

// MemoryUsedBytes is the change in resident memory across the run.
func (r *RunReport) MemoryUsedBytes() int64 {
	return r.MemoryAfterBytes - r.MemoryBeforeBytes
}

// WriteText prints the report one field per line. The thread count is only
// shown for multithreaded runs.
func (r *RunReport) WriteText(w io.Writer) error {
	type line struct{ label, value string }
	lines := []line{
		{"Start Time", r.Start.Format(time.ANSIC)},
		{"End Time", r.End.Format(time.ANSIC)},
		{"Time Spent", fmt.Sprintf("%.2f seconds", r.Elapsed.Seconds())},
		{"File Size", fmt.Sprintf("%.2f MB", float64(r.FileSizeBytes)/mib)},
		{"Memory Used", fmt.Sprintf("%.2f MB", float64(r.MemoryUsedBytes())/mib)},
		{"Total Sum of CSV", r.Total.String()},
	}
	if r.Mode == chunk.ModeMultithreaded {
		lines = append(lines, line{"Number of Threads", fmt.Sprint(r.Threads)})
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-18s: %s\n", l.label, l.value); err != nil {
			return err
		}
	}
	return nil
}

type jsonReport struct {
	Mode            string    `json:"mode"`
	Path            string    `json:"path"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
	FileSizeBytes   int64     `json:"file_size_bytes"`
	MemoryUsedBytes int64     `json:"memory_used_bytes"`
	Total           string    `json:"total"`
	TotalIsInteger  bool      `json:"total_is_integer"`
	Rows            int64     `json:"rows"`
	Threads         int       `json:"threads"`
	ChunkRows       int       `json:"chunk_rows"`
}

// WriteJSON writes the report as an indented JSON object. The total is a
// string so integer totals beyond 2^53 survive decoding.
func (r *RunReport) WriteJSON(w io.Writer) error {
	data, err := gojson.MarshalIndent(jsonReport{
		Mode:            r.Mode,
		Path:            r.Path,
		Start:           r.Start,
		End:             r.End,
		ElapsedSeconds:  r.Elapsed.Seconds(),
		FileSizeBytes:   r.FileSizeBytes,
		MemoryUsedBytes: r.MemoryUsedBytes(),
		Total:           r.Total.String(),
		TotalIsInteger:  r.Total.IsInteger(),
		Rows:            r.Rows,
		Threads:         r.Threads,
		ChunkRows:       r.ChunkRows,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Sizer reports the stored size of an input.
type Sizer interface {
	Size(ctx context.Context, path string) (int64, error)
}

// Recorder takes the before and after readings around a run. Readings
// are best effort; a failed probe is logged and recorded as zero.
type Recorder struct {
	Clock  sysinfo.Clock
	Memory sysinfo.MemoryProbe
	Sizer  Sizer
	Logger *zap.Logger
}

// Run is an in-progress measurement.
type Run struct {
	rec       *Recorder
	mode      string
	path      string
	start     time.Time
	memBefore int64
}

// Start records the start time and resident memory.
func (rec *Recorder) Start(ctx context.Context, mode, path string) *Run {
	return &Run{
		rec:       rec,
		mode:      mode,
		path:      path,
		start:     rec.Clock.Now(),
		memBefore: rec.resident(ctx),
	}
}

// Finish builds the report for a successful run.
func (run *Run) Finish(ctx context.Context, res *chunk.RunResult) *RunReport {
	rec := run.rec
	end := rec.Clock.Now()

	size, err := rec.Sizer.Size(ctx, run.path)
	if err != nil {
		rec.logger().Warn("failed to read input size", zap.String("path", run.path), zap.Error(err))
	}

	return &RunReport{
		Mode:              run.mode,
		Path:              run.path,
		Start:             run.start,
		End:               end,
		Elapsed:           end.Sub(run.start),
		FileSizeBytes:     size,
		MemoryBeforeBytes: run.memBefore,
		MemoryAfterBytes:  rec.resident(ctx),
		Total:             res.Total,
		Rows:              res.Rows,
		Threads:           res.Threads,
		ChunkRows:         res.ChunkRows,
	}
}

func (rec *Recorder) resident(ctx context.Context) int64 {
	rss, err := rec.Memory.ProcessResident(ctx)
	if err != nil {
		rec.logger().Warn("failed to read resident memory", zap.Error(err))
		return 0
	}
	return rss
}

func (rec *Recorder) logger() *zap.Logger {
	if rec.Logger == nil {
		return zap.NewNop()
	}
	return rec.Logger
}
