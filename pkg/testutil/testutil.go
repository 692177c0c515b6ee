// Package testutil provides testing utilities for csvsum
package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// WriteFile writes content to name inside a per-test temporary directory
// and returns its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}

// WriteIntCSV writes rows as a comma-separated file without a header.
func WriteIntCSV(t *testing.T, rows [][]int64) string {
	t.Helper()
	return WriteFile(t, "data.csv", FormatIntRows(rows, ','))
}

// FormatIntRows renders rows as delimited text, one row per line.
func FormatIntRows(rows [][]int64, delim rune) string {
	var b strings.Builder
	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				b.WriteRune(delim)
			}
			b.WriteString(strconv.FormatInt(v, 10))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// IntGrid returns rows x cols values counting up from 1.
func IntGrid(rows, cols int) [][]int64 {
	grid := make([][]int64, rows)
	n := int64(1)
	for r := range grid {
		grid[r] = make([]int64, cols)
		for c := range grid[r] {
			grid[r][c] = n
			n++
		}
	}
	return grid
}
