// Package extract normalizes uploaded PDF, DOCX and plain-text documents into UTF-8 text.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

// formatExtractor turns a blob of one format into text.
type formatExtractor interface {
	extract(ctx context.Context, blob []byte) (string, error)
}

// Service dispatches extraction by format.
type Service struct {
	extractors     map[domain.Format]formatExtractor
	maxUploadBytes int64
	logger         *observability.Logger
	metrics        *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithMaxUploadBytes sets the upload size limit.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) { s.maxUploadBytes = n }
}

// WithMetrics attaches extraction counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new extraction service.
func NewService(logger *observability.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Service{
		extractors: map[domain.Format]formatExtractor{
			domain.FormatPDF:  pdfExtractor{},
			domain.FormatDOCX: docxExtractor{},
			domain.FormatText: textExtractor{},
		},
		maxUploadBytes: 50 << 20,
		logger:         logger.WithOperation("extract"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DetectFormat resolves the format from the declared type or filename suffix, checked in
// order PDF, DOCX, plain text.
func DetectFormat(declaredType, filename string) (domain.Format, error) {
	dt := strings.ToLower(declaredType)
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case strings.Contains(dt, "pdf") || ext == ".pdf":
		return domain.FormatPDF, nil
	case strings.Contains(dt, "word") || ext == ".docx":
		return domain.FormatDOCX, nil
	case strings.Contains(dt, "text") || ext == ".txt":
		return domain.FormatText, nil
	}

	return "", domain.UnsupportedFormat(
		fmt.Sprintf("unsupported document %q (type %q): expected .pdf, .docx or .txt", filename, declaredType), nil)
}

// Accept checks an upload at the boundary before extraction. It enforces the size limit,
// fills in a missing or generic declared type by sniffing the content, and resolves the format.
// It returns the effective declared type alongside the format.
func (s *Service) Accept(blob []byte, declaredType, filename string) (string, domain.Format, error) {
	if int64(len(blob)) > s.maxUploadBytes {
		return "", "", domain.UnsupportedFormat(
			fmt.Sprintf("document %q is %d bytes, limit is %d", filename, len(blob), s.maxUploadBytes), nil)
	}

	if declaredType == "" || strings.HasPrefix(declaredType, "application/octet-stream") {
		declaredType = sniff(blob)
	}

	format, err := DetectFormat(declaredType, filename)
	if err != nil {
		return "", "", err
	}
	return declaredType, format, nil
}

// Extract converts blob to text. It is all-or-nothing: on error no partial text is returned.
func (s *Service) Extract(ctx context.Context, blob []byte, declaredType, filename string) (string, error) {
	format, err := DetectFormat(declaredType, filename)
	if err != nil {
		s.metrics.IncExtraction("unsupported", err)
		return "", err
	}

	start := time.Now()
	text, err := s.extractors[format].extract(ctx, blob)
	s.metrics.IncExtraction(string(format), err)
	if err != nil {
		s.logger.Warn().
			Str("document", filename).
			Str("format", string(format)).
			Err(err).
			Msg("Extraction failed")
		return "", err
	}

	s.logger.Debug().
		Str("document", filename).
		Str("format", string(format)).
		Int("chars", len([]rune(text))).
		Dur("duration", time.Since(start)).
		Msg("Extraction complete")

	return text, nil
}

// sniff maps detected content to one of the accepted MIME types, or returns the detected type.
func sniff(blob []byte) string {
	mt := mimetype.Detect(blob)
	for _, accepted := range []string{mimePDF, mimeDOCX, mimeText} {
		if mt.Is(accepted) {
			return accepted
		}
	}
	return mt.String()
}
