package api

import (
	"context"
	"errors"
	"net/http"

	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/models"
	"visa-portal/internal/wizard"
)

const maxUploadBytes = 10 << 20

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wizardFor(r).Dashboard(r.Context()))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.wizardFor(r).Cancel(r.Context()); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step models.Step `json:"step"`
	}
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	wz := h.wizardFor(r)
	if err := wz.Back(r.Context(), req.Step); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.Dashboard(r.Context()))
}

func (h *Handler) ApplyVisa(w http.ResponseWriter, r *http.Request) {
	app, err := h.wizardFor(r).ApplyVisa(r.Context())
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"application": app})
}

func (h *Handler) SubmitVisaApplication(w http.ResponseWriter, r *http.Request) {
	var app models.VisaApplication
	if err := readJSON(r, &app); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if err := h.wizardFor(r).SubmitVisaApplication(r.Context(), app); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"application": app})
}

func (h *Handler) UniversityRecommendations(w http.ResponseWriter, r *http.Request) {
	unis, err := h.wizardFor(r).UniversityRecommendations(r.Context())
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"universities": unis})
}

func (h *Handler) SelectUniversity(w http.ResponseWriter, r *http.Request) {
	var req models.SelectedUniversityInput
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if err := h.wizardFor(r).SelectUniversity(r.Context(), req.UniversityName); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) AgencyRecommendations(w http.ResponseWriter, r *http.Request) {
	agencies, err := h.wizardFor(r).AgencyRecommendations(r.Context())
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agencies": agencies})
}

func (h *Handler) SelectAgency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgencyID string `json:"agency_id"`
	}
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if req.AgencyID == "" {
		h.errors.HandleHTTPError(w, r, apperrors.NewValidationError("agency_id is required"))
		return
	}
	agency, err := h.wizardFor(r).SelectAgency(r.Context(), req.AgencyID)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agency)
}

func (h *Handler) ApplicationForm(w http.ResponseWriter, r *http.Request) {
	view, err := h.wizardFor(r).ApplicationForm(r.Context())
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// WaitForApplicationForm long-polls the gate. When the wait runs out while the
// agency is still reviewing, the response says "waiting" and the client asks again.
// A client that disconnects cancels the poll.
func (h *Handler) WaitForApplicationForm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.gateWait)
	defer cancel()

	view, err := h.wizardFor(r).WaitForApplicationForm(ctx)
	if errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"gate": wizard.GateWaiting})
		return
	}
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) SaveFormDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers models.FormAnswers `json:"answers"`
	}
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if err := h.wizardFor(r).SaveFormDraft(r.Context(), req.Answers); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SubmitApplicationForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers models.FormAnswers `json:"answers"`
	}
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	wz := h.wizardFor(r)
	if err := wz.SubmitApplicationForm(r.Context(), req.Answers); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.Dashboard(r.Context()))
}

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.errors.HandleHTTPError(w, r, apperrors.NewValidationError("invalid multipart body: "+err.Error()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.errors.HandleHTTPError(w, r, apperrors.NewValidationError("file is required"))
		return
	}
	defer file.Close()

	result, err := h.wizardFor(r).UploadDocument(r.Context(), r.FormValue("document_type"), header.Filename, file)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ContinueToPayment(w http.ResponseWriter, r *http.Request) {
	wz := h.wizardFor(r)
	if err := wz.ContinueToPayment(r.Context()); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.Dashboard(r.Context()))
}

func (h *Handler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	wz := h.wizardFor(r)
	if err := wz.CompletePayment(r.Context()); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.Dashboard(r.Context()))
}
