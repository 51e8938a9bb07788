package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo, "warning": LevelWarn, "error": LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Format: "json", Output: &buf, Component: "dispatch"})
	l.Info("dispatch.turn.start", "turn", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatch.turn.start", entry["msg"])
	assert.Equal(t, "dispatch", entry["component"])
	assert.EqualValues(t, 1, entry["turn"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Format: "text", Output: &buf})
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.True(t, Enabled(l, LevelError))
	assert.False(t, Enabled(l, LevelDebug))
}

type recordingLogger struct{ lines []string }

func (r *recordingLogger) record(msg string, args ...any) {
	parts := []string{msg}
	for _, a := range args {
		parts = append(parts, strings.TrimSpace(strings.ReplaceAll(toString(a), "\n", " ")))
	}
	r.lines = append(r.lines, strings.Join(parts, " "))
}

func toString(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.record(msg, args...) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.record(msg, args...) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.record(msg, args...) }
func (r *recordingLogger) Error(msg string, args ...any) { r.record(msg, args...) }

func TestWith_WrapsForeignLogger(t *testing.T) {
	rec := &recordingLogger{}
	l := With(rec, "run_id", "r1")
	l.Info("hello", "k", "v")
	require.Len(t, rec.lines, 1)
	assert.Equal(t, `hello "run_id" "r1" "k" "v"`, rec.lines[0])

	assert.Equal(t, NoOpLogger{}, With(nil))
}

func TestLogToolCall(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})
	LogToolCall(l, "object_store", "list", 5*time.Millisecond, nil)
	LogToolCall(l, "object_store", "download", time.Millisecond, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "tool.call.completed")
	assert.Contains(t, out, "tool.call.failed")
	assert.Contains(t, out, "boom")
}
