package stats

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperrors "github.com/PluxCo/testing-platform-old/pkg/http/errors"
)

// Handler serves the statistics endpoints.
type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// HandleShort is GET /v1/statistics/short.
func (h *Handler) HandleShort(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.Short(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("short statistics failed")
		httperrors.RespondInternalError(w, "statistics unavailable")
		return
	}
	respondJSON(w, summaries)
}

// HandlePerson is GET /v1/statistics/persons/{id}.
func (h *Handler) HandlePerson(w http.ResponseWriter, r *http.Request) {
	personID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid person id")
		return
	}
	progress, err := h.svc.ForPerson(r.Context(), personID)
	if err != nil {
		h.logger.Error().Err(err).Msg("person statistics failed")
		httperrors.RespondInternalError(w, "statistics unavailable")
		return
	}
	respondJSON(w, progress)
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
