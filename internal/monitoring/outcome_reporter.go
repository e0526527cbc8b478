// Package monitoring fans task outcomes out to the progress store, the log and subscribers.
package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/cache"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
)

// OutcomeReporter implements domain.OutcomeSink. Every outcome is logged, persisted to the
// store when one is configured, and published on the outcome channel when a publisher is set.
type OutcomeReporter struct {
	logger    *observability.Logger
	store     domain.OutcomeSink
	publisher cache.Publisher
	channel   string
	metrics   *observability.Metrics
}

// ReporterOption configures an OutcomeReporter.
type ReporterOption func(*OutcomeReporter)

// WithStore persists outcomes to store.
func WithStore(store domain.OutcomeSink) ReporterOption {
	return func(r *OutcomeReporter) { r.store = store }
}

// WithPublisher broadcasts outcomes on channel.
func WithPublisher(p cache.Publisher, channel string) ReporterOption {
	return func(r *OutcomeReporter) {
		r.publisher = p
		r.channel = channel
	}
}

// WithMetrics counts deliveries.
func WithMetrics(m *observability.Metrics) ReporterOption {
	return func(r *OutcomeReporter) { r.metrics = m }
}

// NewOutcomeReporter creates a new outcome reporter.
func NewOutcomeReporter(logger *observability.Logger, opts ...ReporterOption) *OutcomeReporter {
	if logger == nil {
		logger = observability.NopLogger()
	}
	r := &OutcomeReporter{logger: logger.WithOperation("outcomes")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report records an outcome. A publish failure is logged only; a store failure is returned.
func (r *OutcomeReporter) Report(ctx context.Context, outcome domain.Outcome) error {
	if outcome.ID == uuid.Nil {
		outcome.ID = uuid.New()
	}
	if outcome.OccurredAt.IsZero() {
		outcome.OccurredAt = time.Now().UTC()
	}

	r.logger.Info().
		Str("outcome_id", outcome.ID.String()).
		Str("filename", outcome.DocumentID.Filename).
		Str("task_kind", string(outcome.TaskKind)).
		Bool("success", outcome.Success).
		Str("error_kind", string(outcome.ErrorKind)).
		Msg("Task outcome")

	if r.publisher != nil && r.channel != "" {
		err := r.publisher.Publish(ctx, r.channel, outcome)
		r.metrics.IncOutcomeDelivery("publish", err)
		if err != nil {
			r.logger.Warn().Str("channel", r.channel).Err(err).Msg("Failed to publish outcome")
		}
	}

	if r.store == nil {
		return nil
	}
	err := r.store.Report(ctx, outcome)
	r.metrics.IncOutcomeDelivery("store", err)
	if err != nil {
		return fmt.Errorf("persist outcome %s: %w", outcome.ID, err)
	}
	return nil
}
