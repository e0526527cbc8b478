// Package provider builds the configured model provider by name.
package provider

import (
	"fmt"
	"sort"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/config"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/models"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/provider/hfinference"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/provider/mock"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/provider/openai"
)

// Factory creates a provider from model configuration.
type Factory func(cfg config.ModelsConfig, logger *observability.Logger) (models.Provider, error)

var factories = map[string]Factory{
	"hfinference": newHFInference,
	"openai":      newOpenAI,
	"mock":        newMock,
}

// New creates the provider named by cfg.Provider.
func New(cfg config.ModelsConfig, logger *observability.Logger) (models.Provider, error) {
	factory, ok := factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown model provider %q (available: %v)", cfg.Provider, Names())
	}
	p, err := factory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Provider, err)
	}
	return p, nil
}

// Names lists the registered provider names.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newHFInference(cfg config.ModelsConfig, logger *observability.Logger) (models.Provider, error) {
	client, err := hfinference.NewClient(hfinference.Config{
		APIToken:   cfg.APIToken,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}, logger)
	if err != nil {
		return nil, err
	}
	return hfinference.NewProvider(client,
		hfinference.ModelSpec{Model: cfg.Summarizer.Model, MaxInputChars: cfg.Summarizer.MaxInputChars},
		hfinference.ModelSpec{Model: cfg.QA.Model, MaxInputChars: cfg.QA.MaxInputChars},
		hfinference.ModelSpec{Model: cfg.QuestionGen.Model, MaxInputChars: cfg.QuestionGen.MaxInputChars},
	), nil
}

func newOpenAI(cfg config.ModelsConfig, _ *observability.Logger) (models.Provider, error) {
	baseURL := cfg.BaseURL
	// The hfinference default base URL is meaningless here.
	if baseURL == config.DefaultConfig().Models.BaseURL {
		baseURL = ""
	}
	return openai.NewProvider(openai.Config{
		APIKey:              cfg.APIToken,
		BaseURL:             baseURL,
		Timeout:             cfg.Timeout,
		MaxRetries:          cfg.MaxRetries,
		SummarizerModel:     openAIModel(cfg.Summarizer.Model, hfinference.DefaultSummarizationModel),
		QAModel:             openAIModel(cfg.QA.Model, hfinference.DefaultQAModel),
		QuestionGenModel:    openAIModel(cfg.QuestionGen.Model, hfinference.DefaultQuestionGenModel),
		SummarizerMaxChars:  cfg.Summarizer.MaxInputChars,
		QAMaxChars:          cfg.QA.MaxInputChars,
		QuestionGenMaxChars: cfg.QuestionGen.MaxInputChars,
	})
}

// openAIModel drops hosted-model ids that only make sense for hfinference.
func openAIModel(configured, hfDefault string) string {
	if configured == hfDefault {
		return ""
	}
	return configured
}

func newMock(cfg config.ModelsConfig, _ *observability.Logger) (models.Provider, error) {
	return mock.NewProvider(mock.Config{}), nil
}
