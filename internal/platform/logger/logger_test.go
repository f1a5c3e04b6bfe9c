package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/phrazzld/meetrec/internal/config"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevels(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	testCases := []struct {
		level      string
		wantDebug  bool
		wantInfo   bool
		wantErrors bool
	}{
		{level: "debug", wantDebug: true, wantInfo: true, wantErrors: true},
		{level: "info", wantDebug: false, wantInfo: true, wantErrors: true},
		{level: "error", wantDebug: false, wantInfo: false, wantErrors: true},
		{level: "bogus", wantDebug: false, wantInfo: true, wantErrors: true},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &logger.TestLogBuffer{}
			l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: tc.level, LogFormat: "json"}, buf)
			require.NoError(t, err)
			require.NotNil(t, l)

			ctx := context.Background()
			assert.Equal(t, tc.wantDebug, l.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tc.wantInfo, l.Enabled(ctx, slog.LevelInfo))
			assert.Equal(t, tc.wantErrors, l.Enabled(ctx, slog.LevelError))
		})
	}
}

func TestSetupWritesJSONAndSetsDefault(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &logger.TestLogBuffer{}
	_, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "info", LogFormat: "json"}, buf)
	require.NoError(t, err)

	slog.Info("task claimed", "task_id", 42)

	entries := buf.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "task claimed", entries[0]["msg"])
	assert.EqualValues(t, 42, entries[0]["task_id"])
}

func TestSetupTextFormat(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &logger.TestLogBuffer{}
	l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "info", LogFormat: "text"}, buf)
	require.NoError(t, err)

	l.Info("hello", "unique_id", "rec_1")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "unique_id=rec_1")
	assert.Empty(t, buf.Entries())
}

func TestContextLogger(t *testing.T) {
	fallback, _ := logger.NewTestLogger()
	scoped, buf := logger.NewTestLogger()

	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))

	ctx := logger.WithLogger(context.Background(), scoped.With("task_id", 7))
	logger.FromContextOrDefault(ctx, fallback).Info("scoped")

	entries := buf.Entries()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 7, entries[0]["task_id"])
}
