package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestAdapterRoutesThroughZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Init(zap.New(core), "debug")

	l := NewSlogAdapter("component", "swap")
	l.Info("quote resolved", "amount", "1.5")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "quote resolved", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "swap", fields["component"])
	assert.Equal(t, "1.5", fields["amount"])
}
