package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	require.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()

	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestLoggerWritesComponentField(t *testing.T) {
	SetLevel("info")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "optimizer")
	l.Infof("routes=%d", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "optimizer", line["component"])
	assert.Equal(t, "routes=3", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestSetLevelFiltersDebug(t *testing.T) {
	SetLevel("warn")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "sim")
	l.Debugf("hidden")
	l.Infof("hidden")
	assert.Zero(t, buf.Len())

	l.Warnf("shown")
	assert.Contains(t, buf.String(), "shown")
}
