package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/storage"
)

// ProgressHandler handles learners, study sessions and dashboards.
type ProgressHandler struct {
	base
	store *storage.ProgressStore
}

// NewProgressHandler creates a progress handler.
func NewProgressHandler(logger *observability.Logger, store *storage.ProgressStore) *ProgressHandler {
	return &ProgressHandler{base: base{logger: logger.WithOperation("progress_api")}, store: store}
}

// CreateUserRequestDTO is the body of POST /users.
type CreateUserRequestDTO struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"required,email,max=100"`
}

// StartSessionRequestDTO is the body of POST /sessions.
type StartSessionRequestDTO struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// ProgressRequestDTO is the body of POST /sessions/{sessionId}/progress.
type ProgressRequestDTO struct {
	QuestionsAnswered int `json:"questions_answered" validate:"gte=0"`
	CorrectAnswers    int `json:"correct_answers" validate:"gte=0,ltefield=QuestionsAnswered"`
	StudyMinutes      int `json:"study_time_minutes" validate:"gte=0"`
}

// CreateUser handles POST /users.
func (h *ProgressHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequestDTO
	if err := h.bind(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body", err)
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Username, req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info().Str("user_id", user.ID.String()).Msg("User created")
	h.writeJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /users/{userId}.
func (h *ProgressHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "userId")
	if !ok {
		return
	}
	user, err := h.store.User(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// Dashboard handles GET /users/{userId}/dashboard.
func (h *ProgressHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "userId")
	if !ok {
		return
	}
	d, err := h.store.Dashboard(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// StartSession handles POST /sessions.
func (h *ProgressHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequestDTO
	if err := h.bind(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body", err)
		return
	}

	session, err := h.store.StartSession(r.Context(), uuid.MustParse(req.UserID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, session)
}

// AddProgress handles POST /sessions/{sessionId}/progress.
func (h *ProgressHandler) AddProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "sessionId")
	if !ok {
		return
	}
	var req ProgressRequestDTO
	if err := h.bind(r, &req); err != nil {
		h.writeBadRequest(w, "invalid request body", err)
		return
	}

	session, err := h.store.AddProgress(r.Context(), id, storage.ProgressDelta{
		QuestionsAnswered: req.QuestionsAnswered,
		CorrectAnswers:    req.CorrectAnswers,
		StudyMinutes:      req.StudyMinutes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

func (h *ProgressHandler) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.writeBadRequest(w, "invalid "+param, err)
		return uuid.Nil, false
	}
	return id, true
}
