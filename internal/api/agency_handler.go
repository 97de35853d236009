package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/models"
)

func (h *Handler) AgencyRequests(w http.ResponseWriter, r *http.Request) {
	token, err := h.token(r)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	requests, err := h.backend.AgencyRequests(r.Context(), token)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if requests == nil {
		requests = []models.StudentRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// DecideRequest accepts or rejects a student request.
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	token, err := h.token(r)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	var req struct {
		Decision models.RequestDecision `json:"decision"`
	}
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	status, err := req.Decision.Status()
	if errors.Is(err, models.ErrInvalidRequestDecision) {
		h.errors.HandleHTTPError(w, r, apperrors.NewValidationError("decision must be accept or reject"))
		return
	}

	requestID := chi.URLParam(r, "requestID")
	if err := h.backend.UpdateRequestStatus(r.Context(), token, requestID, status); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	h.logger.Info("request decided", map[string]interface{}{
		"requestId": requestID,
		"status":    string(status),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": requestID, "status": status})
}
