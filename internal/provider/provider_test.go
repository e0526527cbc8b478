package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig().Models

	cfg.Provider = "mock"
	p, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	cfg.Provider = "hfinference"
	cfg.APIToken = "hf_test"
	p, err = New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "hfinference", p.Name())

	cfg.Provider = "openai"
	cfg.APIToken = "sk-test"
	p, err = New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNew_Errors(t *testing.T) {
	cfg := config.DefaultConfig().Models

	cfg.Provider = "llama"
	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hfinference")

}

func TestNew_MissingCredentialFailsOnLoad(t *testing.T) {
	for _, name := range []string{"hfinference", "openai"} {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig().Models
			cfg.Provider = name
			cfg.APIToken = ""

			p, err := New(cfg, nil)
			require.NoError(t, err)

			_, err = p.LoadQuestionAnswerer(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "is required")
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"hfinference", "mock", "openai"}, Names())
}
