package chunk

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"sync"

	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
)

// Batch is a contiguous run of rows drawn from the input. It is owned by
// the aggregation call that consumes it and never modified.
type Batch struct {
	// Index is the zero-based draw position of the batch.
	Index int64
	// StartRow is the zero-based index of the first row in the input.
	StartRow int64
	Rows     [][]string
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.Rows)
}

// ReaderOptions configures delimited-text parsing.
type ReaderOptions struct {
	Delimiter rune // defaults to ','
	Comment   rune // 0 disables comments
}

// BatchReader is a forward-only cursor producing batches of up to a fixed
// number of rows. Draws are serialized by an internal lock, so a reader
// can be shared by several goroutines; processing of drawn batches is what
// runs in parallel. A reader cannot be rewound; re-reading requires
// reopening the input.
type BatchReader struct {
	mu        sync.Mutex
	csv       *csv.Reader
	chunkRows int
	index     int64
	rows      int64
	done      bool
	err       error
}

// NewBatchReader creates a reader drawing chunkRows rows per batch from r.
func NewBatchReader(r io.Reader, chunkRows int, opts ReaderOptions) (*BatchReader, error) {
	if chunkRows <= 0 {
		return nil, sumerrors.New(sumerrors.ErrorTypePlanning, "chunk size must be positive").
			WithDetail("chunk_rows", chunkRows)
	}
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.Comment = opts.Comment
	cr.FieldsPerRecord = 0
	cr.ReuseRecord = false
	return &BatchReader{csv: cr, chunkRows: chunkRows}, nil
}

// RowsRead returns the number of rows drawn so far.
func (br *BatchReader) RowsRead() int64 {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.rows
}

// Next draws one batch. It returns nil, nil once the input is exhausted.
// A read or parse failure is sticky: every later draw returns it again.
func (br *BatchReader) Next(ctx context.Context) (*Batch, error) {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.next(ctx)
}

// NextN draws up to n batches in one step. An empty slice signals that the
// input is exhausted.
func (br *BatchReader) NextN(ctx context.Context, n int) ([]*Batch, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	if n < 1 {
		n = 1
	}
	batches := make([]*Batch, 0, n)
	for len(batches) < n {
		b, err := br.next(ctx)
		if err != nil {
			return nil, err
		}
		if b == nil {
			break
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func (br *BatchReader) next(ctx context.Context) (*Batch, error) {
	if br.err != nil {
		return nil, br.err
	}
	if br.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, min(br.chunkRows, 4096))
	for len(rows) < br.chunkRows {
		record, err := br.csv.Read()
		if errors.Is(err, io.EOF) {
			br.done = true
			break
		}
		if err != nil {
			br.err = readError(err, br.rows+int64(len(rows)))
			return nil, br.err
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	b := &Batch{Index: br.index, StartRow: br.rows, Rows: rows}
	br.index++
	br.rows += int64(len(rows))
	return b, nil
}

// readError classifies a csv.Reader failure. Malformed rows are data-format
// errors; anything else means the underlying stream broke.
func readError(err error, row int64) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		reason := "parse"
		if errors.Is(perr.Err, csv.ErrFieldCount) {
			reason = "field_count"
		}
		return sumerrors.Wrap(err, sumerrors.ErrorTypeNonNumericField, "malformed row").
			WithDetail("row", row+1).
			WithDetail("line", perr.Line).
			WithDetail("reason", reason)
	}
	return sumerrors.Wrap(err, sumerrors.ErrorTypeSourceUnavailable, "failed to read input")
}
