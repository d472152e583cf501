package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseZerologLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"Warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseZerologLevel(tt.input))
		})
	}
}

func TestNewZerolog_WritesConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	z, err := NewZerolog(ZerologOptions{
		Console: &console,
		File:    &file,
		Level:   "info",
		Fields:  map[string]any{"component": "influx"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = z.Close() })

	z.Logger.Debug().Msg("hidden")
	z.Logger.Info().Str("bucket", "telemetry").Msg("connected")

	assert.NotContains(t, file.String(), "hidden")
	assert.Contains(t, file.String(), "connected")
	assert.Contains(t, file.String(), "bucket=telemetry")
	assert.Contains(t, file.String(), "component=influx")
	assert.Contains(t, console.String(), "connected")
	assert.NotContains(t, file.String(), "\x1b[", "file output is not coloured")
}

func TestNewZerolog_SampledBurst(t *testing.T) {
	var file bytes.Buffer
	z, err := NewZerolog(ZerologOptions{File: &file, Level: "debug"})
	require.NoError(t, err)

	for range 20 {
		z.Sampled.Info().Msg("hot path")
	}

	// burst of 5, then 1 in 100
	n := bytes.Count(file.Bytes(), []byte("hot path"))
	assert.GreaterOrEqual(t, n, 5)
	assert.LessOrEqual(t, n, 6)
}

func TestNewZerolog_NoWriters(t *testing.T) {
	z, err := NewZerolog(ZerologOptions{})
	require.NoError(t, err)
	assert.NotPanics(t, func() { z.Logger.Info().Msg("discarded") })
	assert.NoError(t, z.Close())
}
