// Package handlers provides HTTP handlers for the Study Engine API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/storage"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/study"
)

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 1 << 20

// ErrorDTO is the error response body.
type ErrorDTO struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// base carries the response helpers shared by every handler.
type base struct {
	logger *observability.Logger
}

// bind decodes a JSON body into dst and validates it. An empty body leaves dst at its zero value.
func (b base) bind(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := getValidator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return errors.New(strings.Join(lo.Map(verrs, func(fe validator.FieldError, _ int) string {
				if fe.Param() != "" {
					return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
				}
				return fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag())
			}), "; "))
		}
		return err
	}
	return nil
}

func (b base) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (b base) writeBadRequest(w http.ResponseWriter, message string, err error) {
	b.writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: "bad_request", Message: message, Detail: err.Error()})
}

// writeError maps err to a status code and error code.
func (b base) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		b.logger.Error().Err(err).Str("code", code).Msg("Request failed")
	}
	b.writeJSON(w, status, ErrorDTO{Error: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, study.ErrDocumentNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, storage.ErrInvalidProgress):
		return http.StatusBadRequest, "invalid_progress"
	}

	kind := domain.KindOf(err)
	switch kind {
	case domain.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType, string(kind)
	case domain.KindDecodeError, domain.KindCorruptDocument:
		return http.StatusUnprocessableEntity, string(kind)
	case domain.KindModelsNotInitialized, domain.KindCapabilityUnavailable, domain.KindLoadError:
		return http.StatusServiceUnavailable, string(kind)
	case domain.KindDispatchFailure:
		return http.StatusBadGateway, string(kind)
	case domain.KindInvalidTask, domain.KindInvalidChunkConfig:
		return http.StatusBadRequest, string(kind)
	}
	return http.StatusInternalServerError, "internal_error"
}
