package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestComponentFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	WarnCF("filter", "Dropped message", map[string]interface{}{
		"sender": "ou_x",
		"chat":   "oc_1",
	})
	DebugC("kernel", "Registered")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "Dropped message", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "filter", ctx["component"])
	assert.Equal(t, "ou_x", ctx["sender"])
	assert.Equal(t, "oc_1", ctx["chat"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "kernel", entries[1].ContextMap()["component"])
}

func TestLevelGate(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := Replace(zap.New(core))
	defer restore()

	InfoC("x", "hidden")
	ErrorC("x", "shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestInit(t *testing.T) {
	prev := L()
	defer Replace(prev)

	require.NoError(t, Init(Config{Level: "debug", Format: "json"}))
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init(Config{Level: "error", Format: "text"}))
	assert.False(t, L().Core().Enabled(zapcore.WarnLevel))
}
