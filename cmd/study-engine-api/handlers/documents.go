package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/storage"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/study"
)

// multipartOverhead is allowed on top of the document size limit for form boundaries and headers.
const multipartOverhead = 1 << 20

// DocumentHandler handles uploads and tasks on uploaded documents.
type DocumentHandler struct {
	base
	service        *study.Service
	store          *storage.ProgressStore
	maxUploadBytes int64
}

// NewDocumentHandler creates a document handler. store may be nil.
func NewDocumentHandler(logger *observability.Logger, service *study.Service, store *storage.ProgressStore, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{
		base:           base{logger: logger.WithOperation("documents_api")},
		service:        service,
		store:          store,
		maxUploadBytes: maxUploadBytes,
	}
}

// AskRequestDTO is the body of POST /documents/{documentId}/ask.
type AskRequestDTO struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// SummarizeRequestDTO is the body of POST /documents/{documentId}/summarize. Zero bounds use the defaults.
type SummarizeRequestDTO struct {
	MinLength int `json:"min_length" validate:"gte=0"`
	MaxLength int `json:"max_length" validate:"gte=0"`
}

// QuizRequestDTO is the body of POST /documents/{documentId}/quiz.
type QuizRequestDTO struct {
	Count      int    `json:"count" validate:"gte=0,lte=50"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

// DocumentDetailDTO is a document with its upload record and recent task outcomes.
type DocumentDetailDTO struct {
	*study.Document
	Record   *storage.DocumentRecord `json:"record,omitempty"`
	Outcomes []*domain.Outcome       `json:"outcomes,omitempty"`
}

// Upload handles POST /documents with a multipart "file" field.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, err)
			return
		}
		h.writeBadRequest(w, "expected multipart form with a file field", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeBadRequest(w, "file field is required", err)
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}

	doc, err := h.service.Upload(r.Context(), blob, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if doc.Cached {
		status = http.StatusOK
	}
	h.writeJSON(w, status, doc)
}

// List handles GET /documents, the most recent uploads.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusOK, []*storage.DocumentRecord{})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			h.writeBadRequest(w, "limit must be between 1 and 100", fmt.Errorf("limit=%q", v))
			return
		}
		limit = n
	}

	records, err := h.store.RecentDocuments(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

// Get handles GET /documents/{documentId}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := h.service.Document(ctx, chi.URLParam(r, "documentId"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := DocumentDetailDTO{Document: doc}
	if h.store != nil {
		if rec, err := h.store.Document(ctx, doc.ID); err == nil {
			resp.Record = rec
		} else if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn().Err(err).Msg("Failed to load document record")
		}
		if outcomes, err := h.store.Outcomes(ctx, doc.ID, 20); err == nil {
			resp.Outcomes = outcomes
		} else {
			h.logger.Warn().Err(err).Msg("Failed to load task outcomes")
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Text handles GET /documents/{documentId}/text.
func (h *DocumentHandler) Text(w http.ResponseWriter, r *http.Request) {
	text, err := h.service.Text(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

// Ask handles POST /documents/{documentId}/ask.
func (h *DocumentHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequestDTO
	if err := h.bind(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body", err)
		return
	}
	h.run(w, r, domain.QuestionRequest(req.Question))
}

// Summarize handles POST /documents/{documentId}/summarize.
func (h *DocumentHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequestDTO
	if err := h.bind(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body", err)
		return
	}
	h.run(w, r, domain.SummarizeRequest(req.MinLength, req.MaxLength))
}

// Quiz handles POST /documents/{documentId}/quiz.
func (h *DocumentHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	req := QuizRequestDTO{Count: 5, Difficulty: string(domain.DifficultyMedium)}
	if err := h.bind(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body", err)
		return
	}
	h.run(w, r, domain.QuizRequest(req.Count, domain.Difficulty(req.Difficulty)))
}

func (h *DocumentHandler) run(w http.ResponseWriter, r *http.Request, req domain.TaskRequest) {
	res, err := h.service.Run(r.Context(), chi.URLParam(r, "documentId"), req, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}
