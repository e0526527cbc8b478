// Package openai serves the study capabilities by prompting an OpenAI chat model.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

// DefaultModel is used when no model id is configured.
const DefaultModel = shared.ChatModelGPT4oMini

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int

	SummarizerModel  string
	QAModel          string
	QuestionGenModel string

	SummarizerMaxChars  int
	QAMaxChars          int
	QuestionGenMaxChars int
}

// Provider loads prompt-backed capabilities.
type Provider struct {
	client openai.Client
	cfg    Config
}

// ErrMissingKey is returned by the loaders when no API key is configured.
var ErrMissingKey = errors.New("API key is required")

// NewProvider creates a provider. A missing key is reported by the loaders.
func NewProvider(cfg Config) (*Provider, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Provider{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "openai" }

// LoadSummarizer verifies the summarization model and returns its handle.
func (p *Provider) LoadSummarizer(ctx context.Context) (domain.Summarizer, error) {
	model, err := p.checkModel(ctx, p.cfg.SummarizerModel)
	if err != nil {
		return nil, err
	}
	return &summarizer{chat: p.chat(model), limit: p.cfg.SummarizerMaxChars}, nil
}

// LoadQuestionAnswerer verifies the QA model and returns its handle.
func (p *Provider) LoadQuestionAnswerer(ctx context.Context) (domain.QuestionAnswerer, error) {
	model, err := p.checkModel(ctx, p.cfg.QAModel)
	if err != nil {
		return nil, err
	}
	return &questionAnswerer{chat: p.chat(model), limit: p.cfg.QAMaxChars}, nil
}

// LoadQuestionGenerator verifies the question generation model and returns its handle.
func (p *Provider) LoadQuestionGenerator(ctx context.Context) (domain.QuestionGenerator, error) {
	model, err := p.checkModel(ctx, p.cfg.QuestionGenModel)
	if err != nil {
		return nil, err
	}
	return &questionGenerator{chat: p.chat(model), limit: p.cfg.QuestionGenMaxChars}, nil
}

// checkModel resolves the default model id and confirms the key can see it.
func (p *Provider) checkModel(ctx context.Context, model string) (string, error) {
	if model == "" {
		model = string(DefaultModel)
	}
	if p.cfg.APIKey == "" {
		return "", fmt.Errorf("%s: %w", model, ErrMissingKey)
	}
	if _, err := p.client.Models.Get(ctx, model); err != nil {
		return "", fmt.Errorf("%s: %w", model, err)
	}
	return model, nil
}

// chatFunc sends one system+user exchange and returns the assistant text.
type chatFunc func(ctx context.Context, system, user string, maxTokens int) (string, error)

func (p *Provider) chat(model string) chatFunc {
	return func(ctx context.Context, system, user string, maxTokens int) (string, error) {
		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			Temperature: openai.Float(0),
		}
		if maxTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(maxTokens))
		}

		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("%s: %w", model, err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%s: no choices returned", model)
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}
}

type summarizer struct {
	chat  chatFunc
	limit int
}

func (s *summarizer) Name() domain.CapabilityName { return domain.CapabilitySummarization }
func (s *summarizer) MaxInputChars() int          { return s.limit }

func (s *summarizer) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	system := fmt.Sprintf(
		"Summarize the user's study text in plain prose between %d and %d words. Reply with the summary only.",
		minLength, maxLength)
	return s.chat(ctx, system, text, maxLength*2)
}

type questionAnswerer struct {
	chat  chatFunc
	limit int
}

func (q *questionAnswerer) Name() domain.CapabilityName { return domain.CapabilityQA }
func (q *questionAnswerer) MaxInputChars() int          { return q.limit }

const qaSystemPrompt = `Answer the question using only a span copied from the context.
Reply with JSON {"answer": "<span or empty>", "confidence": <0..1>}. Use an empty answer when the context does not contain it.`

type qaReply struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

func (q *questionAnswerer) Answer(ctx context.Context, question, passage string) (string, float64, error) {
	user := "Context:\n" + passage + "\n\nQuestion: " + question
	raw, err := q.chat(ctx, qaSystemPrompt, user, 200)
	if err != nil {
		return "", 0, err
	}

	reply, err := parseQAReply(raw)
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(reply.Answer), min(max(reply.Confidence, 0), 1), nil
}

// parseQAReply accepts a bare JSON object or one wrapped in a fenced code block.
func parseQAReply(raw string) (qaReply, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return qaReply{}, errors.New("QA reply is not JSON")
	}

	var reply qaReply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return qaReply{}, fmt.Errorf("parse QA reply: %w", err)
	}
	return reply, nil
}

type questionGenerator struct {
	chat  chatFunc
	limit int
}

func (g *questionGenerator) Name() domain.CapabilityName { return domain.CapabilityQuestionGeneration }
func (g *questionGenerator) MaxInputChars() int          { return g.limit }

const qgSystemPrompt = "You write one short study question answerable from the given sentence. Reply with the question only."

func (g *questionGenerator) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	sentence := strings.TrimSpace(strings.TrimPrefix(prompt, "generate question:"))
	return g.chat(ctx, qgSystemPrompt, sentence, maxLength)
}
