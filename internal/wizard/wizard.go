// Package wizard sequences the student application wizard: step entry and
// progress bookkeeping, the request-status gate in front of the application form,
// and the calls each step makes to the marketplace backend.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"visa-portal/internal/common/config"
	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/validation"
	"visa-portal/internal/formrender"
	"visa-portal/internal/models"
	"visa-portal/internal/progress"
	"visa-portal/internal/storage"
)

// Document types accepted on the document-upload step.
const (
	DocumentPassport = "passport"
	DocumentCV       = "cv"
)

// Backend is the part of the marketplace backend the wizard depends on.
// backend.Client implements it.
type Backend interface {
	RankPredictor
	PredictUniversity(ctx context.Context, token string, features map[string]interface{}) ([]models.UniversityPrediction, error)
	AgenciesByUniversity(ctx context.Context, token, university string) ([]models.Agency, error)
	SetSelectedUniversity(ctx context.Context, token, universityName string) error
	SendRequest(ctx context.Context, token string, in models.SendRequestInput) error
	RequestStatus(ctx context.Context, token string) (*models.RequestStatusInfo, error)
	FetchForm(ctx context.Context, token, agencyID, universityName string) (*models.FormModel, error)
	UploadDocument(ctx context.Context, token, documentType, filename string, content io.Reader) (*models.DocumentUploadResult, error)
}

// Service holds what every session's wizard shares.
type Service struct {
	backend  Backend
	poller   *StatusPoller
	ranker   *RankEnricher
	recorder StepRecorder
	logger   logger.Logger
}

func NewService(backend Backend, cfg config.WizardConfig, recorder StepRecorder, log logger.Logger) *Service {
	return &Service{
		backend:  backend,
		poller:   NewStatusPoller(config.GetDuration(cfg.PollInterval), log),
		ranker:   NewRankEnricher(backend, cfg.RankingConcurrency, config.GetDuration(cfg.RankingTimeout), log),
		recorder: recorder,
		logger:   log.WithFields(map[string]interface{}{"component": "wizard"}),
	}
}

// ForSession binds the wizard to one session's storage.
func (s *Service) ForSession(session *storage.Session) *Wizard {
	log := s.logger.WithFields(map[string]interface{}{"sessionId": session.ID()})
	return &Wizard{
		svc:     s,
		session: session,
		tracker: progress.NewTracker(session, log),
		logger:  log,
	}
}

// Wizard runs the steps of one session.
type Wizard struct {
	svc     *Service
	session *storage.Session
	tracker *progress.Tracker
	logger  logger.Logger
}

func (w *Wizard) Tracker() *progress.Tracker {
	return w.tracker
}

func (w *Wizard) enter(ctx context.Context, step models.Step, data map[string]interface{}) error {
	seq := NewSequence(ctx, w.tracker, w.svc.recorder, w.logger)
	return seq.Enter(ctx, step, data)
}

// requireReached fails unless the current step is step or later.
func (w *Wizard) requireReached(ctx context.Context, step models.Step) error {
	current := models.StepApplyVisa
	if record := w.tracker.GetProgress(ctx); record != nil {
		current = record.CurrentStep
	}
	if current.Index() < step.Index() {
		return apperrors.NewStepTransitionError(string(current), string(step))
	}
	return nil
}

func (w *Wizard) token(ctx context.Context) (string, error) {
	token, ok := w.session.Token(ctx)
	if !ok {
		return "", apperrors.NewAuthenticationError("no valid session token")
	}
	return token, nil
}

// ==========================================
// apply-visa
// ==========================================

// ApplyVisa enters the first step and returns the saved application, if any, for
// prefill.
func (w *Wizard) ApplyVisa(ctx context.Context) (*models.VisaApplication, error) {
	if err := w.enter(ctx, models.StepApplyVisa, nil); err != nil {
		return nil, err
	}
	app, _ := w.session.VisaApplication(ctx)
	return app, nil
}

// SubmitVisaApplication validates and stores the application collected on the
// apply-visa step.
func (w *Wizard) SubmitVisaApplication(ctx context.Context, app models.VisaApplication) error {
	if err := validateVisaApplication(app); err != nil {
		return err
	}
	if err := w.session.SetVisaApplication(ctx, app); err != nil {
		return err
	}
	return w.enter(ctx, models.StepApplyVisa, map[string]interface{}{"visa_application": app})
}

func validateVisaApplication(app models.VisaApplication) error {
	missing := make([]string, 0)
	required := map[string]string{
		"full_name":           app.FullName,
		"email":               app.Email,
		"nationality":         app.Nationality,
		"destination_country": app.DestinationCountry,
		"program":             app.Program,
	}
	for _, field := range []string{"full_name", "email", "nationality", "destination_country", "program"} {
		if strings.TrimSpace(required[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing fields: " + strings.Join(missing, ", "))
	}
	if !validation.ValidateEmail(app.Email) {
		return apperrors.NewValidationError("invalid email: " + app.Email)
	}
	if app.GPA < 0 {
		return apperrors.NewValidationError("gpa must not be negative")
	}
	return nil
}

// ==========================================
// university-recommendations
// ==========================================

// UniversityRecommendations enters the step and returns the predicted universities
// with their ranks. Rank failures degrade to models.RankUnavailable per entry.
func (w *Wizard) UniversityRecommendations(ctx context.Context) ([]models.RankedUniversity, error) {
	app, ok := w.session.VisaApplication(ctx)
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("Visa application", "complete the apply-visa step first")
	}
	if err := w.enter(ctx, models.StepUniversityRecommendations, nil); err != nil {
		return nil, err
	}

	token, err := w.token(ctx)
	if err != nil {
		return nil, err
	}
	predictions, err := w.svc.backend.PredictUniversity(ctx, token, app.Features())
	if err != nil {
		return nil, err
	}
	return w.svc.ranker.Enrich(ctx, token, predictions), nil
}

// SelectUniversity records the student's university choice locally and with the
// backend.
func (w *Wizard) SelectUniversity(ctx context.Context, universityName string) error {
	if strings.TrimSpace(universityName) == "" {
		return apperrors.NewValidationError("university_name is required")
	}
	token, err := w.token(ctx)
	if err != nil {
		return err
	}
	if err := w.svc.backend.SetSelectedUniversity(ctx, token, universityName); err != nil {
		return err
	}
	if err := w.session.SetSelectedUniversity(ctx, universityName); err != nil {
		return err
	}
	return w.enter(ctx, models.StepUniversityRecommendations, map[string]interface{}{
		"selected_university": universityName,
	})
}

// ==========================================
// visa-agency-recommendations
// ==========================================

// AgencyRecommendations enters the step and lists the agencies serving the
// selected university.
func (w *Wizard) AgencyRecommendations(ctx context.Context) ([]models.Agency, error) {
	university, ok := w.session.SelectedUniversity(ctx)
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("Selected university", "choose a university first")
	}
	token, err := w.token(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.enter(ctx, models.StepAgencyRecommendations, nil); err != nil {
		return nil, err
	}
	return w.svc.backend.AgenciesByUniversity(ctx, token, university)
}

// SelectAgency sends the application request to the chosen agency. Answers
// drafted for a previous agency are dropped.
func (w *Wizard) SelectAgency(ctx context.Context, agencyID string) (*models.Agency, error) {
	university, ok := w.session.SelectedUniversity(ctx)
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("Selected university", "choose a university first")
	}
	token, err := w.token(ctx)
	if err != nil {
		return nil, err
	}

	agencies, err := w.svc.backend.AgenciesByUniversity(ctx, token, university)
	if err != nil {
		return nil, err
	}
	var chosen *models.Agency
	for i := range agencies {
		if agencies[i].ID == agencyID {
			chosen = &agencies[i]
			break
		}
	}
	if chosen == nil {
		return nil, apperrors.NewResourceNotFoundError("Agency", fmt.Sprintf("%s does not serve %s", agencyID, university))
	}

	if err := w.svc.backend.SendRequest(ctx, token, models.SendRequestInput{AgencyID: chosen.ID, UniversityName: university}); err != nil {
		return nil, err
	}
	if err := w.session.SetSelectedAgency(ctx, *chosen); err != nil {
		return nil, err
	}
	if err := w.session.Clear(ctx, storage.KeyApplicationFormAnswers); err != nil {
		return nil, err
	}
	if err := w.enter(ctx, models.StepAgencyRecommendations, map[string]interface{}{
		"selected_agency": chosen.ID,
	}); err != nil {
		return nil, err
	}
	return chosen, nil
}

// ==========================================
// application-form
// ==========================================

// ApplicationFormView is what the application-form step shows: the gate and, once
// it has opened, the agency's form with the drafted answers.
type ApplicationFormView struct {
	Gate       GateDecision              `json:"gate"`
	Status     *models.RequestStatusInfo `json:"status,omitempty"`
	University string                    `json:"university"`
	Agency     *models.Agency            `json:"agency,omitempty"`
	Form       *models.FormModel         `json:"form,omitempty"`
	Fields     []formrender.Field        `json:"fields,omitempty"`
	Answers    models.FormAnswers        `json:"answers,omitempty"`
}

type selection struct {
	token      string
	university string
	agency     *models.Agency
}

func (w *Wizard) selection(ctx context.Context) (*selection, error) {
	token, err := w.token(ctx)
	if err != nil {
		return nil, err
	}
	university, ok := w.session.SelectedUniversity(ctx)
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("Selected university", "choose a university first")
	}
	agency, ok := w.session.SelectedAgency(ctx)
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("Selected agency", "choose an agency first")
	}
	return &selection{token: token, university: university, agency: agency}, nil
}

// ApplicationForm enters the step and checks the gate once.
func (w *Wizard) ApplicationForm(ctx context.Context) (*ApplicationFormView, error) {
	sel, err := w.selection(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.enter(ctx, models.StepApplicationForm, nil); err != nil {
		return nil, err
	}
	info, err := w.svc.backend.RequestStatus(ctx, sel.token)
	if err != nil {
		return nil, err
	}
	return w.formView(ctx, sel, DecideGate(info), info)
}

// WaitForApplicationForm polls the request status until the agency answers or ctx
// ends. Polling stops on the first rejected or proceed status.
func (w *Wizard) WaitForApplicationForm(ctx context.Context) (*ApplicationFormView, error) {
	sel, err := w.selection(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.enter(ctx, models.StepApplicationForm, nil); err != nil {
		return nil, err
	}
	result, err := w.svc.poller.Wait(ctx, func(ctx context.Context) (*models.RequestStatusInfo, error) {
		return w.svc.backend.RequestStatus(ctx, sel.token)
	})
	if err != nil {
		return nil, err
	}
	return w.formView(ctx, sel, result.Decision, result.Status)
}

func (w *Wizard) formView(ctx context.Context, sel *selection, gate GateDecision, info *models.RequestStatusInfo) (*ApplicationFormView, error) {
	view := &ApplicationFormView{Gate: gate, Status: info, University: sel.university, Agency: sel.agency}
	if gate != GateProceed {
		return view, nil
	}

	form, err := w.svc.backend.FetchForm(ctx, sel.token, sel.agency.ID, sel.university)
	if err != nil {
		return nil, err
	}
	answers := w.session.FormAnswers(ctx)
	fields, err := formrender.Render(form, answers)
	if err != nil {
		return nil, apperrors.NewFormSchemaInvalidError(err.Error())
	}
	view.Form = form
	view.Fields = fields
	view.Answers = answers
	return view, nil
}

// SaveFormDraft stores answers so the form can be resumed.
func (w *Wizard) SaveFormDraft(ctx context.Context, answers models.FormAnswers) error {
	if answers == nil {
		answers = models.FormAnswers{}
	}
	return w.session.SetFormAnswers(ctx, answers)
}

// SubmitApplicationForm checks the gate, validates required answers against the
// agency's form and advances to document-upload with the answers.
func (w *Wizard) SubmitApplicationForm(ctx context.Context, answers models.FormAnswers) error {
	sel, err := w.selection(ctx)
	if err != nil {
		return err
	}
	info, err := w.svc.backend.RequestStatus(ctx, sel.token)
	if err != nil {
		return err
	}
	switch DecideGate(info) {
	case GateRejected:
		return apperrors.NewRequestCancelledError(sel.agency.Name)
	case GateWaiting:
		return apperrors.NewStepTransitionError(string(models.StepApplicationForm), string(models.StepDocumentUpload))
	}

	form, err := w.svc.backend.FetchForm(ctx, sel.token, sel.agency.ID, sel.university)
	if err != nil {
		return err
	}
	if answers == nil {
		answers = models.FormAnswers{}
	}
	if err := formrender.ValidateRequired(form, answers); err != nil {
		var reqErr *formrender.RequiredFieldError
		if errors.As(err, &reqErr) {
			return apperrors.NewRequiredFieldMissingError(reqErr.QuestionID, reqErr.Title)
		}
		return apperrors.NewFormSchemaInvalidError(err.Error())
	}
	if err := w.session.SetFormAnswers(ctx, answers); err != nil {
		return err
	}
	return w.enter(ctx, models.StepDocumentUpload, map[string]interface{}{"form_answers": answers})
}

// ==========================================
// document-upload, payment
// ==========================================

// UploadDocument sends a passport or CV for extraction and merges the extracted
// fields into the progress data as "<type>_data". Only SubmitApplicationForm
// moves the wizard onto document-upload.
func (w *Wizard) UploadDocument(ctx context.Context, documentType, filename string, content io.Reader) (*models.DocumentUploadResult, error) {
	if documentType != DocumentPassport && documentType != DocumentCV {
		return nil, apperrors.NewValidationError("document_type must be passport or cv")
	}
	token, err := w.token(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.requireReached(ctx, models.StepDocumentUpload); err != nil {
		return nil, err
	}
	if err := w.enter(ctx, models.StepDocumentUpload, nil); err != nil {
		return nil, err
	}
	result, err := w.svc.backend.UploadDocument(ctx, token, documentType, filename, content)
	if err != nil {
		return nil, err
	}
	w.tracker.SaveProgress(ctx, models.StepDocumentUpload, map[string]interface{}{
		documentType + "_data": result.Fields,
	})
	return result, nil
}

func (w *Wizard) ContinueToPayment(ctx context.Context) error {
	return w.enter(ctx, models.StepPayment, nil)
}

// CompletePayment finishes the application and clears its progress and selection.
func (w *Wizard) CompletePayment(ctx context.Context) error {
	if err := w.enter(ctx, models.StepCompleted, nil); err != nil {
		return err
	}
	return w.reset(ctx)
}

// Cancel abandons the application.
func (w *Wizard) Cancel(ctx context.Context) error {
	return w.reset(ctx)
}

func (w *Wizard) reset(ctx context.Context) error {
	w.tracker.ClearProgress(ctx)
	if err := w.session.ClearSelection(ctx); err != nil {
		return err
	}
	w.logger.Info("application cleared", nil)
	return nil
}

// Back returns to an earlier step. Completed steps stay completed.
func (w *Wizard) Back(ctx context.Context, step models.Step) error {
	current := NewSequence(ctx, w.tracker, w.svc.recorder, w.logger)
	if step.Valid() && step.Index() > current.Current().Index() {
		return apperrors.NewStepTransitionError(string(current.Current()), string(step))
	}
	return current.Enter(ctx, step, nil)
}

// Dashboard summarizes the session's application for "Continue" vs "Start New".
func (w *Wizard) Dashboard(ctx context.Context) progress.Summary {
	return w.tracker.Summary(ctx)
}
