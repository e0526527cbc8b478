// Package models holds the process-wide registry of loaded inference capabilities.
package models

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
)

// Provider constructs capability handles. Each loader is called at most once per load attempt.
type Provider interface {
	Name() string
	LoadSummarizer(ctx context.Context) (domain.Summarizer, error)
	LoadQuestionAnswerer(ctx context.Context) (domain.QuestionAnswerer, error)
	LoadQuestionGenerator(ctx context.Context) (domain.QuestionGenerator, error)
}

// Availability reports which capabilities are usable.
type Availability struct {
	Provider string                           `json:"provider"`
	Ready    bool                             `json:"ready"`
	Loading  bool                             `json:"loading"`
	Loaded   []domain.CapabilityName          `json:"loaded"`
	Failed   map[domain.CapabilityName]string `json:"failed,omitempty"`
	Limits   map[domain.CapabilityName]int    `json:"limits"`
	LoadedAt *time.Time                       `json:"loaded_at,omitempty"`
}

// capabilitySet is published once and never mutated.
type capabilitySet struct {
	handles  map[domain.CapabilityName]domain.Capability
	failed   map[domain.CapabilityName]error
	loadedAt time.Time
}

// Registry loads capabilities once and serves them read-only afterwards.
// A failed load is not cached; the next EnsureLoaded retries from scratch.
type Registry struct {
	provider Provider
	limits   map[domain.CapabilityName]int
	logger   *observability.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	set     atomic.Pointer[capabilitySet]
	lastErr atomic.Pointer[capabilitySet] // most recent total failure, cleared on success
	loading atomic.Bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLimit sets the input limit used when a capability does not report one.
func WithLimit(name domain.CapabilityName, maxChars int) Option {
	return func(r *Registry) { r.limits[name] = maxChars }
}

// WithMetrics attaches load counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an unloaded registry over provider.
func NewRegistry(provider Provider, logger *observability.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	r := &Registry{
		provider: provider,
		limits: map[domain.CapabilityName]int{
			domain.CapabilitySummarization:      3000,
			domain.CapabilityQA:                 2000,
			domain.CapabilityQuestionGeneration: 200,
		},
		logger: logger.WithOperation("models"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureLoaded loads every capability on first success and is a no-op afterwards.
// Partial availability counts as success; if nothing loads the result is a LoadError.
func (r *Registry) EnsureLoaded(ctx context.Context) (Availability, error) {
	if set := r.set.Load(); set != nil {
		return r.availability(set), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if set := r.set.Load(); set != nil {
		return r.availability(set), nil
	}

	r.loading.Store(true)
	defer r.loading.Store(false)

	start := time.Now()
	r.logger.Info().Str("provider", r.provider.Name()).Msg("Loading models")

	set := &capabilitySet{
		handles: make(map[domain.CapabilityName]domain.Capability, len(domain.AllCapabilities)),
		failed:  make(map[domain.CapabilityName]error),
	}

	for _, name := range domain.AllCapabilities {
		handle, err := r.load(ctx, name)
		r.metrics.IncModelLoad(string(name), err)
		if err != nil {
			r.logger.Warn().Str("capability", string(name)).Err(err).Msg("Capability failed to load")
			set.failed[name] = err
			continue
		}
		set.handles[name] = handle
	}

	if len(set.handles) == 0 {
		errs := lo.FilterMap(domain.AllCapabilities, func(name domain.CapabilityName, _ int) (error, bool) {
			err, ok := set.failed[name]
			return fmt.Errorf("%s: %w", name, err), ok
		})
		r.logger.Error().Dur("duration", time.Since(start)).Msg("No capability could be loaded")
		r.lastErr.Store(set)
		a := r.availability(nil)
		a.Loading = false
		return a, domain.LoadError("no capability could be loaded", errors.Join(errs...))
	}

	set.loadedAt = time.Now()
	r.set.Store(set)
	r.lastErr.Store(nil)

	r.logger.Info().
		Int("loaded", len(set.handles)).
		Int("failed", len(set.failed)).
		Dur("duration", time.Since(start)).
		Msg("Models ready")

	return r.availability(set), nil
}

func (r *Registry) load(ctx context.Context, name domain.CapabilityName) (domain.Capability, error) {
	var (
		handle domain.Capability
		err    error
	)

	switch name {
	case domain.CapabilitySummarization:
		var s domain.Summarizer
		if s, err = r.provider.LoadSummarizer(ctx); err == nil {
			handle = s
		}
	case domain.CapabilityQA:
		var q domain.QuestionAnswerer
		if q, err = r.provider.LoadQuestionAnswerer(ctx); err == nil {
			handle = q
		}
	case domain.CapabilityQuestionGeneration:
		var g domain.QuestionGenerator
		if g, err = r.provider.LoadQuestionGenerator(ctx); err == nil {
			handle = g
		}
	default:
		err = fmt.Errorf("unknown capability %q", name)
	}

	if err == nil && handle == nil {
		err = errors.New("provider returned no handle")
	}
	return handle, err
}

// Ready reports whether a load has succeeded.
func (r *Registry) Ready() bool {
	return r.set.Load() != nil
}

// Status reports availability without triggering a load.
func (r *Registry) Status() Availability {
	return r.availability(r.set.Load())
}

// Get returns a loaded capability by name.
func (r *Registry) Get(name domain.CapabilityName) (domain.Capability, error) {
	set := r.set.Load()
	if set == nil {
		if r.loading.Load() {
			return nil, domain.ModelsNotInitialized("models are still loading")
		}
		return nil, domain.ModelsNotInitialized("models have not been loaded")
	}

	if handle, ok := set.handles[name]; ok {
		return handle, nil
	}
	if err, ok := set.failed[name]; ok {
		return nil, domain.CapabilityUnavailable(fmt.Sprintf("capability %s failed to load", name), err)
	}
	return nil, domain.CapabilityUnavailable(fmt.Sprintf("unknown capability %s", name), nil)
}

// Summarizer returns the summarization capability.
func (r *Registry) Summarizer() (domain.Summarizer, error) {
	return typed[domain.Summarizer](r, domain.CapabilitySummarization)
}

// QuestionAnswerer returns the extractive QA capability.
func (r *Registry) QuestionAnswerer() (domain.QuestionAnswerer, error) {
	return typed[domain.QuestionAnswerer](r, domain.CapabilityQA)
}

// QuestionGenerator returns the question generation capability.
func (r *Registry) QuestionGenerator() (domain.QuestionGenerator, error) {
	return typed[domain.QuestionGenerator](r, domain.CapabilityQuestionGeneration)
}

// Limit returns the input limit for name: the capability's own limit when it reports one,
// otherwise the configured limit.
func (r *Registry) Limit(name domain.CapabilityName) int {
	if set := r.set.Load(); set != nil {
		if handle, ok := set.handles[name]; ok {
			if n := handle.MaxInputChars(); n > 0 {
				return n
			}
		}
	}
	return r.limits[name]
}

func typed[T domain.Capability](r *Registry, name domain.CapabilityName) (T, error) {
	var zero T
	handle, err := r.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := handle.(T)
	if !ok {
		return zero, domain.CapabilityUnavailable(fmt.Sprintf("capability %s has unexpected type %T", name, handle), nil)
	}
	return t, nil
}

func (r *Registry) availability(set *capabilitySet) Availability {
	a := Availability{
		Provider: r.provider.Name(),
		Loading:  r.loading.Load(),
		Loaded:   []domain.CapabilityName{},
		Limits:   make(map[domain.CapabilityName]int, len(domain.AllCapabilities)),
	}
	if set != nil {
		a.Ready = true
		loadedAt := set.loadedAt
		a.LoadedAt = &loadedAt
		for _, name := range domain.AllCapabilities {
			if _, ok := set.handles[name]; ok {
				a.Loaded = append(a.Loaded, name)
			}
		}
	} else {
		set = r.lastErr.Load()
	}
	if set != nil && len(set.failed) > 0 {
		a.Failed = lo.MapValues(set.failed, func(err error, _ domain.CapabilityName) string {
			return err.Error()
		})
	}
	for _, name := range domain.AllCapabilities {
		a.Limits[name] = r.Limit(name)
	}
	return a
}
