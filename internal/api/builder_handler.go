package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/formbuilder"
	"visa-portal/internal/formrender"
	"visa-portal/internal/models"
	"visa-portal/internal/storage"
)

type builderView struct {
	University string            `json:"university,omitempty"`
	Selected   string            `json:"selected,omitempty"`
	Form       *models.FormModel `json:"form,omitempty"`
	Ready      bool              `json:"ready"`
}

func viewOf(b *formbuilder.Builder) builderView {
	return builderView{
		University: b.ActiveUniversity(),
		Selected:   b.SelectedQuestion(),
		Form:       b.ActiveForm(),
		Ready:      b.Ready(b.ActiveUniversity()),
	}
}

func builderError(err error) error {
	switch {
	case errors.Is(err, formbuilder.ErrNoActiveForm):
		return apperrors.NewValidationError("select a university first")
	case errors.Is(err, formbuilder.ErrIndexOutOfRange):
		return apperrors.NewValidationError(err.Error())
	case errors.Is(err, models.ErrUnsupportedQuestionType):
		return apperrors.NewUnsupportedQuestionTypeError(err.Error())
	default:
		return err
	}
}

func (h *Handler) loadBuilder(r *http.Request) *formbuilder.Builder {
	var draft formbuilder.Draft
	if !sessionFrom(r).Load(r.Context(), storage.KeyAgencyFormDrafts, &draft) {
		return formbuilder.New()
	}
	return formbuilder.FromDraft(&draft)
}

// editBuilder runs edit against the session's drafts, persists them and answers
// with edit's result, or with the builder view when the result is nil.
func (h *Handler) editBuilder(w http.ResponseWriter, r *http.Request, edit func(b *formbuilder.Builder) (interface{}, error)) {
	b := h.loadBuilder(r)
	result, err := edit(b)
	if err != nil {
		h.errors.HandleHTTPError(w, r, builderError(err))
		return
	}
	if err := sessionFrom(r).Save(r.Context(), storage.KeyAgencyFormDrafts, b.Draft()); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if result == nil {
		result = viewOf(b)
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) BuilderState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(h.loadBuilder(r)))
}

type universityRequest struct {
	University string `json:"university"`
}

func (h *Handler) BuilderSelectUniversity(w http.ResponseWriter, r *http.Request) {
	var req universityRequest
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if req.University == "" {
		h.errors.HandleHTTPError(w, r, apperrors.NewValidationError("university is required"))
		return
	}
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		b.SelectUniversity(req.University)
		return nil, nil
	})
}

// BuilderLoad replaces the draft for a university with the form saved on the
// backend, or starts an empty one when the agency has none yet.
func (h *Handler) BuilderLoad(w http.ResponseWriter, r *http.Request) {
	var req universityRequest
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if req.University == "" {
		h.errors.HandleHTTPError(w, r, apperrors.NewValidationError("university is required"))
		return
	}
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
	form, err := h.backend.FetchForm(r.Context(), token, profile.AgencyID, req.University)
	if err != nil && !apperrors.HasCode(err, apperrors.ErrCodeResourceNotFound) {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		if form != nil {
			b.SetForm(req.University, form)
		}
		b.SelectUniversity(req.University)
		return nil, nil
	})
}

// BuilderSave persists the active form on the backend for the caller's agency.
func (h *Handler) BuilderSave(w http.ResponseWriter, r *http.Request) {
	token, err := h.token(r)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	b := h.loadBuilder(r)
	form := b.ActiveForm()
	if form == nil {
		h.errors.HandleHTTPError(w, r, builderError(formbuilder.ErrNoActiveForm))
		return
	}
	profile, err := h.backend.Profile(r.Context(), token)
	if err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	if profile.AgencyID == "" {
		h.errors.HandleHTTPError(w, r, apperrors.NewAuthenticationError("account is not an agency"))
		return
	}
	if err := h.backend.SaveForm(r.Context(), token, profile.AgencyID, b.ActiveUniversity(), form); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(b))
}

func (h *Handler) BuilderPreview(w http.ResponseWriter, r *http.Request) {
	b := h.loadBuilder(r)
	form := b.ActiveForm()
	if form == nil {
		h.errors.HandleHTTPError(w, r, builderError(formbuilder.ErrNoActiveForm))
		return
	}
	fields, err := formrender.Render(form, nil)
	if err != nil {
		h.errors.HandleHTTPError(w, r, builderError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"formTitle":       form.FormTitle,
		"formDescription": form.FormDescription,
		"fields":          fields,
	})
}

// BuilderReadiness checks the universities named by ?university=, or every
// drafted one when none is named.
func (h *Handler) BuilderReadiness(w http.ResponseWriter, r *http.Request) {
	b := h.loadBuilder(r)
	universities := r.URL.Query()["university"]
	if len(universities) == 0 {
		for u := range b.Draft().Forms {
			universities = append(universities, u)
		}
		sort.Strings(universities)
	}
	writeJSON(w, http.StatusOK, b.FormsReady(universities))
}

func (h *Handler) BuilderUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var patch formbuilder.MetadataPatch
	if err := readJSON(r, &patch); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		return nil, b.UpdateFormMetadata(patch)
	})
}

func (h *Handler) BuilderAddQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type models.QuestionType `json:"type"`
	}
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		q, err := b.AddQuestion(req.Type)
		if err != nil {
			return nil, err
		}
		return q, nil
	})
}

func (h *Handler) BuilderMoveQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		return nil, b.MoveQuestion(req.From, req.To)
	})
}

func (h *Handler) BuilderSelectQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questionID")
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		b.SelectQuestion(id)
		return nil, nil
	})
}

func (h *Handler) BuilderUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var patch formbuilder.QuestionPatch
	if err := readJSON(r, &patch); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	id := chi.URLParam(r, "questionID")
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		return nil, b.UpdateQuestion(id, patch)
	})
}

func (h *Handler) BuilderDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questionID")
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		return nil, b.DeleteQuestion(id)
	})
}

func (h *Handler) BuilderDuplicateQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questionID")
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		dup, err := b.DuplicateQuestion(id)
		if err != nil || dup == nil {
			return nil, err
		}
		return dup, nil
	})
}

func (h *Handler) BuilderAddOption(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questionID")
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		return nil, b.AddOption(id)
	})
}

func (h *Handler) BuilderUpdateOption(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.errors.HandleHTTPError(w, r, apperrors.NewValidationError("option index must be an integer"))
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := readJSON(r, &req); err != nil {
		h.errors.HandleHTTPError(w, r, err)
		return
	}
	id := chi.URLParam(r, "questionID")
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		return nil, b.UpdateOption(id, index, req.Value)
	})
}

func (h *Handler) BuilderDeleteOption(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.errors.HandleHTTPError(w, r, apperrors.NewValidationError("option index must be an integer"))
		return
	}
	id := chi.URLParam(r, "questionID")
	h.editBuilder(w, r, func(b *formbuilder.Builder) (interface{}, error) {
		return nil, b.DeleteOption(id, index)
	})
}
