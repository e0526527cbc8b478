package hfinference

import (
	"context"
	"fmt"
	"strings"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

// Model ids served by default.
const (
	DefaultSummarizationModel = "facebook/bart-large-cnn"
	DefaultQAModel            = "distilbert-base-cased-distilled-squad"
	DefaultQuestionGenModel   = "t5-small"
)

// ModelSpec names one hosted model and its input limit in characters.
type ModelSpec struct {
	Model         string
	MaxInputChars int
}

// Provider loads capabilities backed by hosted models.
type Provider struct {
	client      *Client
	summarizer  ModelSpec
	qa          ModelSpec
	questionGen ModelSpec
}

// NewProvider creates a provider. Empty model ids fall back to the defaults.
func NewProvider(client *Client, summarizer, qa, questionGen ModelSpec) *Provider {
	if summarizer.Model == "" {
		summarizer.Model = DefaultSummarizationModel
	}
	if qa.Model == "" {
		qa.Model = DefaultQAModel
	}
	if questionGen.Model == "" {
		questionGen.Model = DefaultQuestionGenModel
	}
	return &Provider{
		client:      client,
		summarizer:  summarizer,
		qa:          qa,
		questionGen: questionGen,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return "hfinference" }

// LoadSummarizer verifies the summarization model and returns its handle.
func (p *Provider) LoadSummarizer(ctx context.Context) (domain.Summarizer, error) {
	if err := p.client.checkModel(ctx, p.summarizer.Model); err != nil {
		return nil, err
	}
	return &summarizer{client: p.client, spec: p.summarizer}, nil
}

// LoadQuestionAnswerer verifies the extractive QA model and returns its handle.
func (p *Provider) LoadQuestionAnswerer(ctx context.Context) (domain.QuestionAnswerer, error) {
	if err := p.client.checkModel(ctx, p.qa.Model); err != nil {
		return nil, err
	}
	return &questionAnswerer{client: p.client, spec: p.qa}, nil
}

// LoadQuestionGenerator verifies the text2text generation model and returns its handle.
func (p *Provider) LoadQuestionGenerator(ctx context.Context) (domain.QuestionGenerator, error) {
	if err := p.client.checkModel(ctx, p.questionGen.Model); err != nil {
		return nil, err
	}
	return &questionGenerator{client: p.client, spec: p.questionGen}, nil
}

type summarizer struct {
	client *Client
	spec   ModelSpec
}

func (s *summarizer) Name() domain.CapabilityName { return domain.CapabilitySummarization }
func (s *summarizer) MaxInputChars() int          { return s.spec.MaxInputChars }

type summaryResult struct {
	SummaryText string `json:"summary_text"`
}

func (s *summarizer) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	var out []summaryResult
	err := s.client.infer(ctx, s.spec.Model, inferenceRequest{
		Inputs: text,
		Parameters: map[string]any{
			"min_length": minLength,
			"max_length": maxLength,
			"do_sample":  false,
		},
		Options: map[string]any{"wait_for_model": true},
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%s: empty response", s.spec.Model)
	}
	return strings.TrimSpace(out[0].SummaryText), nil
}

type questionAnswerer struct {
	client *Client
	spec   ModelSpec
}

func (q *questionAnswerer) Name() domain.CapabilityName { return domain.CapabilityQA }
func (q *questionAnswerer) MaxInputChars() int          { return q.spec.MaxInputChars }

type qaInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type qaResult struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

func (q *questionAnswerer) Answer(ctx context.Context, question, passage string) (string, float64, error) {
	var out qaResult
	err := q.client.infer(ctx, q.spec.Model, inferenceRequest{
		Inputs:  qaInputs{Question: question, Context: passage},
		Options: map[string]any{"wait_for_model": true},
	}, &out)
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(out.Answer), clamp01(out.Score), nil
}

type questionGenerator struct {
	client *Client
	spec   ModelSpec
}

func (g *questionGenerator) Name() domain.CapabilityName { return domain.CapabilityQuestionGeneration }
func (g *questionGenerator) MaxInputChars() int          { return g.spec.MaxInputChars }

type generatedResult struct {
	GeneratedText string `json:"generated_text"`
}

func (g *questionGenerator) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	var out []generatedResult
	err := g.client.infer(ctx, g.spec.Model, inferenceRequest{
		Inputs:     prompt,
		Parameters: map[string]any{"max_length": maxLength},
		Options:    map[string]any{"wait_for_model": true},
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%s: empty response", g.spec.Model)
	}
	return strings.TrimSpace(out[0].GeneratedText), nil
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
