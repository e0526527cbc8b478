package handlers

import (
	"net/http"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/study"
)

// ModelHandler reports and triggers model loading.
type ModelHandler struct {
	base
	service *study.Service
}

// NewModelHandler creates a model handler.
func NewModelHandler(logger *observability.Logger, service *study.Service) *ModelHandler {
	return &ModelHandler{base: base{logger: logger.WithOperation("models_api")}, service: service}
}

// Status handles GET /models.
func (h *ModelHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Models())
}

// Load handles POST /models/load. It blocks until loading finishes.
func (h *ModelHandler) Load(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.LoadModels(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}
