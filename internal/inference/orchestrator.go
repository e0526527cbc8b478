// Package inference runs study tasks over extracted text: it chunks the text, dispatches
// windows to the loaded capabilities, aggregates partial results and applies quality policies.
package inference

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
)

// Capabilities is the registry view the orchestrator needs.
type Capabilities interface {
	QuestionAnswerer() (domain.QuestionAnswerer, error)
	Summarizer() (domain.Summarizer, error)
	QuestionGenerator() (domain.QuestionGenerator, error)
	Limit(name domain.CapabilityName) int
}

// Policy holds thresholds and caps applied to task results.
type Policy struct {
	ConfidenceThreshold float64
	SummaryOverlap      int
	SummaryMaxWindows   int
	SummaryMinWords     int
	SummaryMinLength    int
	SummaryMaxLength    int
	QuizMinWords        int
	QuizMaxLength       int
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ConfidenceThreshold: 0.3,
		SummaryOverlap:      0,
		SummaryMaxWindows:   3,
		SummaryMinWords:     50,
		SummaryMinLength:    30,
		SummaryMaxLength:    130,
		QuizMinWords:        6,
		QuizMaxLength:       50,
	}
}

// ProgressFunc is called after each summary window or quiz item is processed.
type ProgressFunc func(done, total int)

// Orchestrator executes one task at a time.
type Orchestrator struct {
	caps    Capabilities
	policy  Policy
	sink    domain.OutcomeSink
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy overrides the default policy.
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithOutcomeSink sets where outcomes are reported after each task.
func WithOutcomeSink(sink domain.OutcomeSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithMetrics attaches task and dispatch counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator over caps.
func NewOrchestrator(caps Capabilities, logger *observability.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	o := &Orchestrator{
		caps:   caps,
		policy: DefaultPolicy(),
		logger: logger.WithOperation("inference"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy returns the active policy.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// task carries the per-execution state shared by the task kinds.
type task struct {
	id       uuid.UUID
	doc      domain.DocumentID
	text     string
	req      domain.TaskRequest
	machine  *machine
	result   *domain.TaskResult
	logger   *observability.Logger
	progress ProgressFunc
}

// Execute runs req over text and returns its result. The result is always non-nil and carries
// the terminal state; on failure the error is a *domain.Error describing why. Execute holds an
// exclusive lock for the whole task.
func (o *Orchestrator) Execute(ctx context.Context, doc domain.DocumentID, text string, req domain.TaskRequest, progress ProgressFunc) (*domain.TaskResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := o.now()
	id := uuid.New()

	t := &task{
		id:      id,
		doc:     doc,
		text:    text,
		req:     req,
		machine: newMachine(o.now),
		result: &domain.TaskResult{
			TaskID: id,
			Kind:   req.Kind,
		},
		logger:   o.logger.WithDocument(doc.Filename, doc.SHA256).WithTask(id.String(), string(req.Kind)),
		progress: progress,
	}

	t.logger.Info().Int("chars", len([]rune(text))).Msg("Starting task")

	var err error
	switch req.Kind {
	case domain.TaskQuestion:
		err = o.question(ctx, t)
	case domain.TaskSummarize:
		err = o.summarize(ctx, t)
	case domain.TaskGenerateQuiz:
		err = o.quiz(ctx, t)
	default:
		err = domain.InvalidTask("unknown task kind " + string(req.Kind))
	}

	if err == nil {
		err = t.machine.advance(domain.StateDone)
	}
	if err != nil {
		t.machine.fail()
	}

	t.result.State = t.machine.state
	t.result.History = t.machine.history
	t.result.Duration = o.now().Sub(start)

	o.metrics.ObserveTask(string(req.Kind), string(t.result.State), t.result.Duration)

	if err != nil {
		t.logger.Warn().
			Str("error_kind", string(domain.KindOf(err))).
			Int("window_failures", len(t.result.Failures)).
			Dur("duration", t.result.Duration).
			Err(err).
			Msg("Task failed")
	} else {
		t.logger.Info().
			Int("window_failures", len(t.result.Failures)).
			Dur("duration", t.result.Duration).
			Msg("Task complete")
	}

	o.report(ctx, t, err)

	if err != nil {
		// Aggregated payloads are never surfaced for a failed task.
		t.result.Answer, t.result.Summary, t.result.Quiz = nil, nil, nil
		return t.result, err
	}
	return t.result, nil
}

// report sends the outcome to the sink. Sink failures are logged and never change the result.
func (o *Orchestrator) report(ctx context.Context, t *task, taskErr error) {
	if o.sink == nil {
		return
	}

	outcome := domain.Outcome{
		ID:         uuid.New(),
		DocumentID: t.doc,
		TaskKind:   t.req.Kind,
		Success:    taskErr == nil,
		ErrorKind:  domain.KindOf(taskErr),
		OccurredAt: o.now().UTC(),
	}

	if err := o.sink.Report(context.WithoutCancel(ctx), outcome); err != nil {
		t.logger.Error().Err(err).Msg("Failed to report task outcome")
	}
}
