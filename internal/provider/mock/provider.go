// Package mock provides a deterministic offline model provider for development and tests.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/samber/lo"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

// FailFunc decides whether a call to capability with the given primary input fails.
type FailFunc func(capability domain.CapabilityName, input string) error

// Config configures the mock provider.
type Config struct {
	// LoadErrors makes loading the named capabilities fail.
	LoadErrors map[domain.CapabilityName]error
	// FailOn injects per-call failures.
	FailOn FailFunc
	// Limits reported by each capability; zero means unreported.
	Limits map[domain.CapabilityName]int
}

// Provider serves deterministic capabilities and records every call.
type Provider struct {
	cfg Config

	mu    sync.Mutex
	loads map[domain.CapabilityName]int
	calls map[domain.CapabilityName][]string
}

// NewProvider creates a mock provider.
func NewProvider(cfg Config) *Provider {
	return &Provider{
		cfg:   cfg,
		loads: make(map[domain.CapabilityName]int),
		calls: make(map[domain.CapabilityName][]string),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return "mock" }

// Loads returns how many times capability was loaded.
func (p *Provider) Loads(capability domain.CapabilityName) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads[capability]
}

// Calls returns the primary inputs passed to capability, in call order.
func (p *Provider) Calls(capability domain.CapabilityName) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls[capability]...)
}

func (p *Provider) load(name domain.CapabilityName) (base, error) {
	p.mu.Lock()
	p.loads[name]++
	p.mu.Unlock()

	if err := p.cfg.LoadErrors[name]; err != nil {
		return base{}, err
	}
	return base{provider: p, name: name, limit: p.cfg.Limits[name]}, nil
}

// LoadSummarizer returns the summarization handle.
func (p *Provider) LoadSummarizer(context.Context) (domain.Summarizer, error) {
	b, err := p.load(domain.CapabilitySummarization)
	if err != nil {
		return nil, err
	}
	return summarizer{b}, nil
}

// LoadQuestionAnswerer returns the QA handle.
func (p *Provider) LoadQuestionAnswerer(context.Context) (domain.QuestionAnswerer, error) {
	b, err := p.load(domain.CapabilityQA)
	if err != nil {
		return nil, err
	}
	return questionAnswerer{b}, nil
}

// LoadQuestionGenerator returns the question generation handle.
func (p *Provider) LoadQuestionGenerator(context.Context) (domain.QuestionGenerator, error) {
	b, err := p.load(domain.CapabilityQuestionGeneration)
	if err != nil {
		return nil, err
	}
	return questionGenerator{b}, nil
}

type base struct {
	provider *Provider
	name     domain.CapabilityName
	limit    int
}

func (b base) Name() domain.CapabilityName { return b.name }
func (b base) MaxInputChars() int          { return b.limit }

func (b base) record(input string) error {
	b.provider.mu.Lock()
	b.provider.calls[b.name] = append(b.provider.calls[b.name], input)
	b.provider.mu.Unlock()

	if b.provider.cfg.FailOn != nil {
		return b.provider.cfg.FailOn(b.name, input)
	}
	return nil
}

type summarizer struct{ base }

// Summarize returns the leading words of text, at most maxLength of them.
func (s summarizer) Summarize(_ context.Context, text string, _, maxLength int) (string, error) {
	if err := s.record(text); err != nil {
		return "", err
	}
	words := strings.Fields(text)
	if maxLength > 0 && len(words) > maxLength {
		words = words[:maxLength]
	}
	return strings.Join(words, " "), nil
}

type questionAnswerer struct{ base }

// Answer returns the context sentence sharing the most words with the question. The confidence
// is the fraction of distinct question words found in that sentence.
func (q questionAnswerer) Answer(_ context.Context, question, passage string) (string, float64, error) {
	if err := q.record(passage); err != nil {
		return "", 0, err
	}

	terms := lo.Uniq(tokens(question))
	if len(terms) == 0 || strings.TrimSpace(passage) == "" {
		return "", 0, nil
	}

	best, bestHits := "", 0
	for _, sentence := range splitSentences(passage) {
		have := lo.Uniq(tokens(sentence))
		hits := lo.CountBy(terms, func(term string) bool { return lo.Contains(have, term) })
		if hits > bestHits {
			best, bestHits = sentence, hits
		}
	}
	return best, float64(bestHits) / float64(len(terms)), nil
}

type questionGenerator struct{ base }

// Generate turns "generate question: <sentence>" into a question about the sentence's opening words.
func (g questionGenerator) Generate(_ context.Context, prompt string, maxLength int) (string, error) {
	if err := g.record(prompt); err != nil {
		return "", err
	}

	subject := strings.TrimSpace(strings.TrimPrefix(prompt, "generate question:"))
	words := strings.Fields(strings.TrimRight(subject, ".!?"))
	if maxLength > 0 && len(words) > maxLength {
		words = words[:maxLength]
	}
	if len(words) > 6 {
		words = words[:6]
	}
	return fmt.Sprintf("What does the text say about %q?", strings.Join(words, " ")), nil
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func splitSentences(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '!' || r == '?' || r == '\n' })
	return lo.FilterMap(parts, func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})
}
