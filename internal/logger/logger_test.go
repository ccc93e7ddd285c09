package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := Setup("info", "json", &buf)

	l.Info().Str("table", "7").Msg("table closed")
	l.Debug().Msg("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "table closed", entry["message"])
	assert.Equal(t, serviceName, entry["service"])
	assert.Equal(t, "7", entry["table"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSetup_Console(t *testing.T) {
	var buf bytes.Buffer
	l := Setup("debug", "console", &buf)

	l.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}
