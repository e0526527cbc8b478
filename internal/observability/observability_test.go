package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf, ServiceName: "study-engine-test"})

	logger.WithDocument("notes.pdf", "0123456789abcdef0123").
		WithTask("task-1", "summarize").
		Info().
		Int("windows", 3).
		Msg("Summarize complete")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "study-engine-test", entry["service"])
	assert.Equal(t, "notes.pdf", entry["document"])
	assert.Equal(t, "0123456789ab", entry["sha256"])
	assert.Equal(t, "summarize", entry["task_kind"])
	assert.Equal(t, float64(3), entry["windows"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("debug").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "info", parseLevel("bogus").String())
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTask("question", "done", time.Second)
	m.IncDispatch("extractive-qa", nil)
	m.AddWindows("skipped", 2)
	m.IncModelLoad("summarization", errors.New("x"))
	m.IncExtraction("pdf", nil)
	assert.Nil(t, NewMetrics(nil))
}

func TestMetrics_Counts(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncDispatch("summarization", nil)
	m.IncDispatch("summarization", errors.New("HTTP 503"))
	m.IncDispatch("summarization", nil)
	m.AddWindows("dropped", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatches.WithLabelValues("summarization", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("summarization", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.windows.WithLabelValues("dropped")))
}
