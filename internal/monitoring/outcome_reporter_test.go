package monitoring

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
)

type fakeStore struct {
	got []domain.Outcome
	err error
}

func (s *fakeStore) Report(_ context.Context, o domain.Outcome) error {
	s.got = append(s.got, o)
	return s.err
}

type fakePublisher struct {
	channel string
	msgs    []any
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message any) error {
	p.channel = channel
	p.msgs = append(p.msgs, message)
	return p.err
}

func TestReport_FansOut(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: &buf})
	store := &fakeStore{}
	pub := &fakePublisher{}

	r := NewOutcomeReporter(logger, WithStore(store), WithPublisher(pub, "study.outcomes"))

	outcome := domain.Outcome{
		DocumentID: domain.NewDocumentID("notes.txt", []byte("x")),
		TaskKind:   domain.TaskSummarize,
		Success:    true,
	}
	require.NoError(t, r.Report(context.Background(), outcome))

	require.Len(t, store.got, 1)
	assert.NotEqual(t, uuid.Nil, store.got[0].ID)
	assert.False(t, store.got[0].OccurredAt.IsZero())

	assert.Equal(t, "study.outcomes", pub.channel)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, store.got[0], pub.msgs[0])

	assert.Contains(t, buf.String(), `"task_kind":"summarize"`)
	assert.Contains(t, buf.String(), "Task outcome")
}

func TestReport_Failures(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	store := &fakeStore{err: errors.New("disk full")}
	pub := &fakePublisher{err: errors.New("connection refused")}
	r := NewOutcomeReporter(nil,
		WithStore(store),
		WithPublisher(pub, "study.outcomes"),
		WithMetrics(metrics),
	)

	err := r.Report(context.Background(), domain.Outcome{TaskKind: domain.TaskQuestion})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// The publish attempt still happened.
	assert.Len(t, pub.msgs, 1)
	count, err := testutil.GatherAndCount(registry, "study_engine_outcome_deliveries_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReport_NoSinks(t *testing.T) {
	r := NewOutcomeReporter(nil)
	assert.NoError(t, r.Report(context.Background(), domain.Outcome{}))
}
