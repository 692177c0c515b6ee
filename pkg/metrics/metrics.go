// Package metrics provides Prometheus instrumentation for csvsum runs.
//
// # Overview
//
// Every processing mode (whole, chunked, multithreaded) records into the same
// vectors, labeled by mode:
//   - csvsum_batches_processed_total / csvsum_rows_processed_total
//   - csvsum_batch_duration_seconds histogram
//   - csvsum_chunk_rows and csvsum_estimated_row_bytes gauges
//   - csvsum_active_workers gauge
//   - csvsum_runs_total{status}
//
// # Basic Usage
//
//	c := metrics.NewCollector("chunked")
//	c.SetPlan(chunkRows, rowBytes)
//	timer := metrics.NewTimer()
//	partial := reduce(batch)
//	c.ObserveBatch(len(batch.Rows), timer.Stop())
//	c.RunFinished(err)
//
// Serve exposes the default registry over HTTP for the duration of a run.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// BatchesProcessed counts batches reduced to a partial sum.
	// Labels: mode
	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvsum_batches_processed_total",
			Help: "Total number of batches aggregated",
		},
		[]string{"mode"},
	)

	// RowsProcessed counts rows folded into the total.
	// Labels: mode
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvsum_rows_processed_total",
			Help: "Total number of rows aggregated",
		},
		[]string{"mode"},
	)

	// BatchDuration tracks the time to reduce one batch.
	// Labels: mode
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csvsum_batch_duration_seconds",
			Help:    "Time spent aggregating a single batch",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	// ChunkRows is the planned rows per batch of the current run.
	// Labels: mode
	ChunkRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "csvsum_chunk_rows",
			Help: "Rows per batch chosen by the chunk planner",
		},
		[]string{"mode"},
	)

	// EstimatedRowBytes is the row-size estimate the plan was derived from.
	// Labels: mode
	EstimatedRowBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "csvsum_estimated_row_bytes",
			Help: "Estimated in-memory bytes per row used for planning",
		},
		[]string{"mode"},
	)

	// ActiveWorkers tracks workers currently reducing a batch.
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "csvsum_active_workers",
			Help: "Workers currently aggregating a batch",
		},
	)

	// RowsPerSecond is the throughput of the last completed run.
	// Labels: mode
	RowsPerSecond = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "csvsum_throughput_rows_per_second",
			Help: "Rows per second of the last completed run",
		},
		[]string{"mode"},
	)

	// RunsTotal counts finished runs.
	// Labels: mode, status (success/failure)
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvsum_runs_total",
			Help: "Total number of finished runs",
		},
		[]string{"mode", "status"},
	)
)

// Collector records the metrics of one processing mode. It is safe for
// concurrent use by parallel workers.
type Collector struct {
	mode      string
	batches   prometheus.Counter
	rows      prometheus.Counter
	duration  prometheus.Observer
	startTime time.Time

	mu        sync.Mutex
	rowsTotal int64
}

// NewCollector creates a collector for the given mode label.
func NewCollector(mode string) *Collector {
	return &Collector{
		mode:      mode,
		batches:   BatchesProcessed.WithLabelValues(mode),
		rows:      RowsProcessed.WithLabelValues(mode),
		duration:  BatchDuration.WithLabelValues(mode),
		startTime: time.Now(),
	}
}

// SetPlan records the chunk plan of a run.
func (c *Collector) SetPlan(chunkRows int, rowBytes int64) {
	ChunkRows.WithLabelValues(c.mode).Set(float64(chunkRows))
	EstimatedRowBytes.WithLabelValues(c.mode).Set(float64(rowBytes))
}

// ObserveBatch records one aggregated batch.
func (c *Collector) ObserveBatch(rows int, d time.Duration) {
	c.batches.Inc()
	c.rows.Add(float64(rows))
	c.duration.Observe(d.Seconds())

	c.mu.Lock()
	c.rowsTotal += int64(rows)
	c.mu.Unlock()
}

// WorkerStarted and WorkerDone bracket one worker's batch.
func (c *Collector) WorkerStarted() { ActiveWorkers.Inc() }

// WorkerDone marks the end of a worker's batch.
func (c *Collector) WorkerDone() { ActiveWorkers.Dec() }

// RunFinished records the run outcome and its throughput.
func (c *Collector) RunFinished(err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	RunsTotal.WithLabelValues(c.mode, status).Inc()

	c.mu.Lock()
	rows := c.rowsTotal
	c.mu.Unlock()

	if elapsed := time.Since(c.startTime).Seconds(); elapsed > 0 {
		RowsPerSecond.WithLabelValues(c.mode).Set(float64(rows) / elapsed)
	}
}

// Timer measures the duration of one operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Serve exposes /metrics on addr until ctx is cancelled. It returns the
// bound address once listening, so addr may use port 0.
func Serve(ctx context.Context, addr string, log *zap.Logger) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}
