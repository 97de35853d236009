// Package api exposes the student wizard, the agency form builder and the agency
// request dashboard over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"visa-portal/internal/backend"
	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/storage"
	"visa-portal/internal/wizard"
)

// Deps is everything the router wires into its handlers.
type Deps struct {
	Store     storage.KVStore
	KeyPrefix string
	Backend   *backend.Client
	Wizards   *wizard.Service
	Logger    logger.Logger
	// Ready reports whether storage is reachable; nil means always ready.
	Ready func(ctx context.Context) error
	// GateWait bounds one long-poll on the application-form gate.
	GateWait time.Duration
}

type Handler struct {
	backend  *backend.Client
	wizards  *wizard.Service
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
	gateWait time.Duration
}

func NewRouter(d Deps) *chi.Mux {
	log := d.Logger.WithFields(map[string]interface{}{"component": "api"})
	h := &Handler{
		backend:  d.Backend,
		wizards:  d.Wizards,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
		gateWait: d.GateWait,
	}
	if h.gateWait <= 0 {
		h.gateWait = 55 * time.Second
	}

	r := chi.NewRouter()
	r.Use(Recovery(h.errors, log))
	r.Use(RequestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "time": time.Now().Format(time.RFC3339)})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "time": time.Now().Format(time.RFC3339)})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(Sessions(d.Store, d.KeyPrefix, log))

		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/profile", h.Profile)

		r.Route("/wizard", func(r chi.Router) {
			r.Get("/dashboard", h.Dashboard)
			r.Post("/cancel", h.Cancel)
			r.Post("/back", h.Back)

			r.Get("/apply-visa", h.ApplyVisa)
			r.Post("/apply-visa", h.SubmitVisaApplication)

			r.Get("/university-recommendations", h.UniversityRecommendations)
			r.Post("/university-recommendations/select", h.SelectUniversity)

			r.Get("/visa-agency-recommendations", h.AgencyRecommendations)
			r.Post("/visa-agency-recommendations/select", h.SelectAgency)

			r.Get("/application-form", h.ApplicationForm)
			r.Get("/application-form/wait", h.WaitForApplicationForm)
			r.Put("/application-form/draft", h.SaveFormDraft)
			r.Post("/application-form/submit", h.SubmitApplicationForm)

			r.Post("/document-upload", h.UploadDocument)

			r.Post("/payment", h.ContinueToPayment)
			r.Post("/payment/complete", h.CompletePayment)
		})

		r.Route("/agency", func(r chi.Router) {
			r.Get("/requests", h.AgencyRequests)
			r.Post("/requests/{requestID}/decision", h.DecideRequest)

			r.Route("/builder", func(r chi.Router) {
				r.Get("/", h.BuilderState)
				r.Post("/select", h.BuilderSelectUniversity)
				r.Post("/load", h.BuilderLoad)
				r.Post("/save", h.BuilderSave)
				r.Get("/preview", h.BuilderPreview)
				r.Get("/readiness", h.BuilderReadiness)
				r.Patch("/metadata", h.BuilderUpdateMetadata)

				r.Post("/questions", h.BuilderAddQuestion)
				r.Post("/questions/move", h.BuilderMoveQuestion)
				r.Post("/questions/{questionID}/select", h.BuilderSelectQuestion)
				r.Patch("/questions/{questionID}", h.BuilderUpdateQuestion)
				r.Delete("/questions/{questionID}", h.BuilderDeleteQuestion)
				r.Post("/questions/{questionID}/duplicate", h.BuilderDuplicateQuestion)
				r.Post("/questions/{questionID}/options", h.BuilderAddOption)
				r.Put("/questions/{questionID}/options/{index}", h.BuilderUpdateOption)
				r.Delete("/questions/{questionID}/options/{index}", h.BuilderDeleteOption)
			})
		})
	})

	return r
}

func (h *Handler) wizardFor(r *http.Request) *wizard.Wizard {
	return h.wizards.ForSession(sessionFrom(r))
}

func (h *Handler) token(r *http.Request) (string, error) {
	token, ok := sessionFrom(r).Token(r.Context())
	if !ok {
		return "", apperrors.NewAuthenticationError("log in first")
	}
	return token, nil
}
