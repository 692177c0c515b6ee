// Package chunk is the aggregation core of csvsum.
//
// A run estimates the in-memory cost of a row from a leading sample
// (Estimator), turns the memory budget into a bounded rows-per-batch count
// (Planner), streams the input in batches of that size (BatchReader) and
// folds every field into a single total (Aggregator). SequentialEngine does
// the folding on the calling goroutine; ParallelEngine fans batches out to
// a bounded worker pool and combines the partial sums on one goroutine.
//
// Processor wires these together behind the three entry points used by the
// CLI: RunWhole, RunSequential and RunParallel.
package chunk
