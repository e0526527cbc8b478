// Package study ties extraction, the text cache, the model registry and the orchestrator into
// the operations a learner performs on an uploaded document.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/cache"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/chunk"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/inference"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/models"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/storage"
)

// ErrDocumentNotFound is returned for a document key with no cached text.
var ErrDocumentNotFound = errors.New("document not found")

// Extractor accepts and converts uploads.
type Extractor interface {
	Accept(blob []byte, declaredType, filename string) (string, domain.Format, error)
	Extract(ctx context.Context, blob []byte, declaredType, filename string) (string, error)
}

// ModelLoader is the registry view the service needs.
type ModelLoader interface {
	EnsureLoaded(ctx context.Context) (models.Availability, error)
	Status() models.Availability
}

// Executor runs tasks.
type Executor interface {
	Execute(ctx context.Context, doc domain.DocumentID, text string, req domain.TaskRequest, progress inference.ProgressFunc) (*domain.TaskResult, error)
}

// DocumentRecorder keeps the upload history.
type DocumentRecorder interface {
	RecordDocument(ctx context.Context, id domain.DocumentID, format domain.Format, text string) (*storage.DocumentRecord, error)
}

// Document describes an extracted upload.
type Document struct {
	Key         string            `json:"document_id"`
	ID          domain.DocumentID `json:"document"`
	Format      domain.Format     `json:"format"`
	Chars       int               `json:"chars"`
	Words       int               `json:"words"`
	Preview     string            `json:"preview"`
	ExtractedAt time.Time         `json:"extracted_at"`
	Cached      bool              `json:"cached"`
}

// entry is the cached form of an extracted document.
type entry struct {
	ID          domain.DocumentID `json:"id"`
	Format      domain.Format     `json:"format"`
	Text        string            `json:"text"`
	ExtractedAt time.Time         `json:"extracted_at"`
}

// Config holds service settings.
type Config struct {
	CacheTTL     time.Duration
	PreviewChars int
}

// Service is the study engine's application facade.
type Service struct {
	extractor Extractor
	cache     cache.Client
	models    ModelLoader
	executor  Executor
	recorder  DocumentRecorder
	cfg       Config
	logger    *observability.Logger

	mu     sync.Mutex
	byName map[string]string // filename -> current document key
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder records every extracted document.
func WithRecorder(r DocumentRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates the facade.
func NewService(extractor Extractor, textCache cache.Client, loader ModelLoader, executor Executor, cfg Config, logger *observability.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Hour
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = storage.PreviewChars
	}
	s := &Service{
		extractor: extractor,
		cache:     textCache,
		models:    loader,
		executor:  executor,
		cfg:       cfg,
		logger:    logger.WithOperation("study"),
		byName:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload accepts a document and makes its text available under the returned key. An upload whose
// identity is already cached is not re-extracted. A new identity for a filename evicts the old one.
func (s *Service) Upload(ctx context.Context, blob []byte, declaredType, filename string) (*Document, error) {
	// Step 1: boundary checks
	declaredType, format, err := s.extractor.Accept(blob, declaredType, filename)
	if err != nil {
		return nil, err
	}

	id := domain.NewDocumentID(filename, blob)
	key := id.Key()
	logger := s.logger.WithDocument(id.Filename, id.SHA256)

	// Step 2: reuse cached text for an unchanged identity
	if e, err := s.load(ctx, key); err == nil {
		s.remember(ctx, filename, key)
		logger.Debug().Msg("Document text served from cache")
		return s.describe(key, e, true), nil
	} else if !errors.Is(err, ErrDocumentNotFound) {
		logger.Warn().Err(err).Msg("Text cache read failed")
	}

	// Step 3: extract
	text, err := s.extractor.Extract(ctx, blob, declaredType, filename)
	if err != nil {
		return nil, err
	}
	e := &entry{ID: id, Format: format, Text: text, ExtractedAt: time.Now().UTC()}

	// Step 4: cache and record
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := s.cache.Set(ctx, cache.TextKey(key), data, s.cfg.CacheTTL); err != nil {
		return nil, fmt.Errorf("cache document text: %w", err)
	}
	s.remember(ctx, filename, key)

	if s.recorder != nil {
		if _, err := s.recorder.RecordDocument(ctx, id, format, text); err != nil {
			logger.Error().Err(err).Msg("Failed to record document")
		}
	}

	logger.Info().
		Str("format", string(format)).
		Int("chars", len([]rune(text))).
		Msg("Document extracted")

	return s.describe(key, e, false), nil
}

// Document describes a previously uploaded document.
func (s *Service) Document(ctx context.Context, key string) (*Document, error) {
	e, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.describe(key, e, true), nil
}

// Text returns a document's full extracted text.
func (s *Service) Text(ctx context.Context, key string) (string, error) {
	e, err := s.load(ctx, key)
	if err != nil {
		return "", err
	}
	return e.Text, nil
}

// Ask answers a question about a document.
func (s *Service) Ask(ctx context.Context, key, question string) (*domain.TaskResult, error) {
	return s.Run(ctx, key, domain.QuestionRequest(question), nil)
}

// Summarize summarizes a document. Zero bounds use the configured defaults.
func (s *Service) Summarize(ctx context.Context, key string, minLength, maxLength int) (*domain.TaskResult, error) {
	return s.Run(ctx, key, domain.SummarizeRequest(minLength, maxLength), nil)
}

// Quiz generates up to count questions from a document.
func (s *Service) Quiz(ctx context.Context, key string, count int, difficulty domain.Difficulty, progress inference.ProgressFunc) (*domain.TaskResult, error) {
	return s.Run(ctx, key, domain.QuizRequest(count, difficulty), progress)
}

// Run executes any task against a document.
func (s *Service) Run(ctx context.Context, key string, req domain.TaskRequest, progress inference.ProgressFunc) (*domain.TaskResult, error) {
	e, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, e.ID, e.Text, req, progress)
}

// LoadModels loads the model capabilities if they are not loaded yet.
func (s *Service) LoadModels(ctx context.Context) (models.Availability, error) {
	return s.models.EnsureLoaded(ctx)
}

// Models reports model readiness without loading.
func (s *Service) Models() models.Availability {
	return s.models.Status()
}

func (s *Service) load(ctx context.Context, key string) (*entry, error) {
	data, err := s.cache.Get(ctx, cache.TextKey(key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, key)
	}
	if err != nil {
		return nil, err
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode cached document %s: %w", key, err)
	}
	return &e, nil
}

// remember points filename at key and evicts the text of the identity it replaces.
func (s *Service) remember(ctx context.Context, filename, key string) {
	s.mu.Lock()
	previous, ok := s.byName[filename]
	s.byName[filename] = key
	s.mu.Unlock()

	if ok && previous != key {
		if err := s.cache.Delete(ctx, cache.TextKey(previous)); err != nil {
			s.logger.Warn().Str("document", filename).Err(err).Msg("Failed to evict replaced document")
		}
	}
}

func (s *Service) describe(key string, e *entry, cached bool) *Document {
	return &Document{
		Key:         key,
		ID:          e.ID,
		Format:      e.Format,
		Chars:       len([]rune(e.Text)),
		Words:       chunk.WordCount(e.Text),
		Preview:     chunk.Preview(e.Text, s.cfg.PreviewChars),
		ExtractedAt: e.ExtractedAt,
		Cached:      cached,
	}
}
