package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/config"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Models.Provider = "mock"
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "study.db")
	return cfg
}

func TestNew_EndToEnd(t *testing.T) {
	ctx := context.Background()
	promRegistry := prometheus.NewRegistry()

	a, err := New(ctx, testConfig(t), observability.NopLogger(), Options{Prometheus: promRegistry})
	require.NoError(t, err)
	defer a.Close()

	doc, err := a.Service.Upload(ctx, []byte("Enzymes speed up chemical reactions in living cells."), "text/plain", "enzymes.txt")
	require.NoError(t, err)

	_, err = a.Service.LoadModels(ctx)
	require.NoError(t, err)

	res, err := a.Service.Ask(ctx, doc.Key, "What do enzymes speed up?")
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, res.State)

	outcomes, err := a.Store.Outcomes(ctx, doc.ID, 10)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)

	rec, err := a.Store.Document(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatText, rec.Format)

	count, err := testutil.GatherAndCount(promRegistry, "study_engine_tasks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNew_SkipStore(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), observability.NopLogger(), Options{SkipStore: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Store)
	assert.Nil(t, a.Metrics)
	assert.NotNil(t, a.Service)
}

func TestNew_DefaultProviderWithoutToken(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "study.db")
	require.Equal(t, "hfinference", cfg.Models.Provider)
	require.Empty(t, cfg.Models.APIToken)

	a, err := New(ctx, cfg, observability.NopLogger(), Options{})
	require.NoError(t, err)
	defer a.Close()

	doc, err := a.Service.Upload(ctx, []byte("Photosynthesis turns light into chemical energy."), "text/plain", "notes.txt")
	require.NoError(t, err)
	text, err := a.Service.Text(ctx, doc.Key)
	require.NoError(t, err)
	assert.Contains(t, text, "Photosynthesis")

	status, err := a.Service.LoadModels(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.KindLoadError, domain.KindOf(err))
	assert.False(t, status.Ready)
	assert.Len(t, status.Failed, 3)
	assert.Len(t, a.Service.Models().Failed, 3)

	_, err = a.Service.Ask(ctx, doc.Key, "What does photosynthesis do?")
	require.Error(t, err)
	assert.Equal(t, domain.KindModelsNotInitialized, domain.KindOf(err))
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Models.Provider = "llama"

	_, err := New(context.Background(), cfg, observability.NopLogger(), Options{SkipStore: true})
	require.Error(t, err)
}

func TestPolicy(t *testing.T) {
	p := Policy(config.DefaultConfig().Pipeline)
	assert.Equal(t, 0.3, p.ConfidenceThreshold)
	assert.Equal(t, 3, p.SummaryMaxWindows)
	assert.Equal(t, 50, p.QuizMaxLength)
}
