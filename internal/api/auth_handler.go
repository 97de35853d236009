package api

import (
	"net/http"
	"strings"

	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/models"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		h.errors.HandleHTTPError(w, r, apperrors.NewValidationError("email and password are required"))
		return
	}

	resp, err := h.backend.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if err := sessionFrom(r).SetAuth(r.Context(), resp.Token, resp.User); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.User)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).Logout(r.Context()); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	token, err := h.token(r)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	profile, err := h.backend.Profile(r.Context(), token)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
