// Package source opens csvsum inputs for reading. Local paths are read from
// disk, s3://bucket/key URLs are streamed from object storage, and both are
// transparently decompressed according to their extension.
package source

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/ajitpratap0/csvsum/pkg/compression"
	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
	"github.com/ajitpratap0/csvsum/pkg/sysinfo"
)

// Opener opens an input for one forward pass and reports its stored size.
type Opener interface {
	// Open returns a fresh decompressed stream positioned at the first row.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Size returns the stored (possibly compressed) size in bytes.
	Size(ctx context.Context, path string) (int64, error)
}

// Local opens files from the local filesystem.
type Local struct {
	fs sysinfo.FileSystemProbe
}

// NewLocal creates a Local opener backed by fs.
func NewLocal(fs sysinfo.FileSystemProbe) *Local {
	return &Local{fs: fs}
}

// Open implements Opener.
func (l *Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	if !l.fs.Available(path) {
		return nil, sumerrors.New(sumerrors.ErrorTypeSourceUnavailable, "file not found or unreadable").
			WithDetail("path", path)
	}
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeSourceUnavailable, "failed to open file").
			WithDetail("path", path)
	}
	return decompress(f, path)
}

// Size implements Opener.
func (l *Local) Size(_ context.Context, path string) (int64, error) {
	size, err := l.fs.FileSize(path)
	if err != nil {
		return 0, sumerrors.Wrap(err, sumerrors.ErrorTypeSourceUnavailable, "failed to stat file").
			WithDetail("path", path)
	}
	return size, nil
}

// Router dispatches s3:// paths to the S3 opener and everything else to
// the local one.
type Router struct {
	Local Opener
	S3    Opener
}

// Open implements Opener.
func (r *Router) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	o, err := r.pick(path)
	if err != nil {
		return nil, err
	}
	return o.Open(ctx, path)
}

// Size implements Opener.
func (r *Router) Size(ctx context.Context, path string) (int64, error) {
	o, err := r.pick(path)
	if err != nil {
		return 0, err
	}
	return o.Size(ctx, path)
}

func (r *Router) pick(path string) (Opener, error) {
	if IsS3(path) {
		if r.S3 == nil {
			return nil, sumerrors.New(sumerrors.ErrorTypeSourceUnavailable, "s3 inputs are not configured").
				WithDetail("path", path)
		}
		return r.S3, nil
	}
	return r.Local, nil
}

// IsS3 reports whether path is an s3:// URL.
func IsS3(path string) bool {
	return strings.HasPrefix(path, s3Scheme)
}

// decompress stacks a decoder over rc; closing the result closes both.
func decompress(rc io.ReadCloser, path string) (io.ReadCloser, error) {
	dec, err := compression.NewReader(rc, compression.Detect(path))
	if err != nil {
		_ = rc.Close()
		return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeSourceUnavailable, "failed to open compressed stream").
			WithDetail("path", path)
	}
	return &stacked{ReadCloser: dec, under: rc}, nil
}

type stacked struct {
	io.ReadCloser
	under io.Closer
}

func (s *stacked) Close() error {
	err := s.ReadCloser.Close()
	if uerr := s.under.Close(); err == nil {
		err = uerr
	}
	return err
}
