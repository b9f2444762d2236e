package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("loud"))
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: WARN, Output: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", F("path", "/about"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "logger_test.go")
	assert.Contains(t, out, "shown | path=/about")
}

func TestLogger_WithFieldsKeepsParentFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: DEBUG, Output: &buf})
	require.NoError(t, err)

	child := l.WithFields(F("request_id", "abc"))
	child.Debug("handled", F("status", 200))

	assert.Contains(t, buf.String(), "request_id=abc status=200")
}

func TestLogger_RotatesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gate.log")
	l, err := New(Config{Level: INFO, FilePath: path, MaxSize: 64, MaxBackups: 2})
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		l.Info("a line long enough to push the file past its limit")
	}

	assert.FileExists(t, path+".1")
}
