package study

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/cache"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/extract"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/inference"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/models"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/provider/mock"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/storage"
)

// countingExtractor wraps the real extractor and counts extractions.
type countingExtractor struct {
	*extract.Service
	mu    sync.Mutex
	calls int
}

func (c *countingExtractor) Extract(ctx context.Context, blob []byte, declaredType, filename string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Service.Extract(ctx, blob, declaredType, filename)
}

type recorder struct {
	docs []domain.DocumentID
	err  error
}

func (r *recorder) RecordDocument(_ context.Context, id domain.DocumentID, _ domain.Format, _ string) (*storage.DocumentRecord, error) {
	r.docs = append(r.docs, id)
	return &storage.DocumentRecord{DocumentID: id}, r.err
}

type fixture struct {
	svc       *Service
	extractor *countingExtractor
	cache     *cache.MemoryClient
	provider  *mock.Provider
	recorder  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem, err := cache.NewMemoryClient(64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	p := mock.NewProvider(mock.Config{})
	registry := models.NewRegistry(p, nil)
	orchestrator := inference.NewOrchestrator(registry, nil)
	ex := &countingExtractor{Service: extract.NewService(nil)}
	rec := &recorder{}

	svc := NewService(ex, mem, registry, orchestrator, Config{PreviewChars: 20}, nil, WithRecorder(rec))
	return &fixture{svc: svc, extractor: ex, cache: mem, provider: p, recorder: rec}
}

const notes = "The mitochondria is the powerhouse of the cell. " +
	"Ribosomes assemble proteins from amino acid chains. Short."

func TestUpload_ExtractsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, []byte(notes), "text/plain", "bio.txt")
	require.NoError(t, err)
	assert.False(t, doc.Cached)
	assert.Equal(t, domain.FormatText, doc.Format)
	assert.Equal(t, "bio.txt", doc.ID.Filename)
	assert.Equal(t, doc.ID.Key(), doc.Key)
	assert.Equal(t, len(notes), doc.Chars)
	assert.Equal(t, "The mitochondria is ", doc.Preview)

	again, err := f.svc.Upload(ctx, []byte(notes), "text/plain", "bio.txt")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, doc.Key, again.Key)

	assert.Equal(t, 1, f.extractor.calls)
	assert.Len(t, f.recorder.docs, 1)
}

func TestUpload_ChangedContentReplacesIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, []byte("Version one of the notes."), "text/plain", "bio.txt")
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, []byte("Version two of the notes."), "text/plain", "bio.txt")
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, 2, f.extractor.calls)

	_, err = f.svc.Document(ctx, first.Key)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	text, err := f.svc.Text(ctx, second.Key)
	require.NoError(t, err)
	assert.Equal(t, "Version two of the notes.", text)
}

func TestUpload_Rejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Upload(context.Background(), []byte("GIF89a"), "image/gif", "cat.gif")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = f.svc.Upload(context.Background(), []byte{0xff, 0xfe, 0xfd}, "text/plain", "bad.txt")
	assert.ErrorIs(t, err, domain.ErrDecodeError)

	assert.Empty(t, f.recorder.docs)
}

func TestUpload_RecorderFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.recorder.err = errors.New("database is locked")

	doc, err := f.svc.Upload(context.Background(), []byte(notes), "text/plain", "bio.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Key)
}

func TestTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, []byte(notes), "", "bio.txt")
	require.NoError(t, err)

	_, err = f.svc.Ask(ctx, doc.Key, "What is the powerhouse of the cell?")
	assert.ErrorIs(t, err, domain.ErrModelsNotInitialized)
	assert.False(t, f.svc.Models().Ready)

	status, err := f.svc.LoadModels(ctx)
	require.NoError(t, err)
	assert.True(t, status.Ready)
	assert.Equal(t, "mock", status.Provider)

	res, err := f.svc.Ask(ctx, doc.Key, "What is the powerhouse of the cell?")
	require.NoError(t, err)
	assert.Equal(t, "The mitochondria is the powerhouse of the cell", res.Answer.Text)

	res, err = f.svc.Summarize(ctx, doc.Key, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "", res.Summary.Text)
	assert.Equal(t, 1, res.Summary.WindowsSkipped)

	var ticks int
	res, err = f.svc.Quiz(ctx, doc.Key, 5, domain.DifficultyEasy, func(done, total int) { ticks++ })
	require.NoError(t, err)
	require.Len(t, res.Quiz.Items, 2)
	assert.Equal(t, 2, ticks)
	assert.True(t, strings.HasPrefix(res.Quiz.Items[1].ReferenceSpan, "Ribosomes"))
}

func TestTasks_UnknownDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ask(context.Background(), "missing", "why?")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.Empty(t, f.provider.Calls(domain.CapabilityQA))
}
