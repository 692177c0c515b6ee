package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInitReplacesGlobal(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, Init(Config{Level: "debug", Encoding: "json", OutputPaths: []string{out}}))

	l := Get()
	require.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init(Config{Level: "error", Encoding: "console", OutputPaths: []string{out}}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
}

func TestOrGlobal(t *testing.T) {
	l := zaptest.NewLogger(t)
	assert.Same(t, l, OrGlobal(l))
	assert.NotNil(t, OrGlobal(nil))
}

func TestWithContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), RunIDKey, "run-1")
	ctx = context.WithValue(ctx, ModeKey, "chunked")
	assert.NotNil(t, WithContext(ctx))
}
