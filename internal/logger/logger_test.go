package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("debug").GetLevel())
	assert.Equal(t, zerolog.WarnLevel, New("WARN").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("invalid").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("").GetLevel())
}

func TestNewWithWriterFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")
	log.Info().Msg("hidden")
	log.Warn().Str("component", "test").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"test"`)
}
