package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visa-portal/internal/backend"
	"visa-portal/internal/common/config"
	apphttp "visa-portal/internal/common/http"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/models"
	"visa-portal/internal/storage"
	"visa-portal/internal/wizard"
)

// ==========================================
// Test Helpers
// ==========================================

const testSession = "session-0001"

type fakeMarketplace struct {
	mu            sync.Mutex
	requestStatus models.RequestStatus
	savedForm     *models.FormModel
	statusUpdates []models.UpdateRequestStatusInput
	form          string
}

func (f *fakeMarketplace) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token":"tok","user":{"id":"u1","email":"a@b.co"}}`)
	})
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id":"u1","email":"a@b.co","agency_id":"ag-1"}`)
	})
	mux.HandleFunc("/auth/agency/forms", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodPut {
			var form models.FormModel
			require.NoError(t, json.NewDecoder(r.Body).Decode(&form))
			f.savedForm = &form
			return
		}
		if f.form == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, f.form)
	})
	mux.HandleFunc("/api/agency/requests", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"r1","status":"open","student_name":"Jane"}]`)
	})
	mux.HandleFunc("/api/agency/requests/r1/status", func(w http.ResponseWriter, r *http.Request) {
		var in models.UpdateRequestStatusInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		f.mu.Lock()
		f.statusUpdates = append(f.statusUpdates, in)
		f.mu.Unlock()
	})
	mux.HandleFunc("/api/predict-university", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"top_5":[{"name":"MIT"},{"name":"Nowhere"}]}`)
	})
	mux.HandleFunc("/api/predict-rank", func(w http.ResponseWriter, r *http.Request) {
		var in models.PredictRankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in.UniversityName != "MIT" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"predicted_rank":"1"}`)
	})
	mux.HandleFunc("/api/students/applications/selected-university", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/students/applications/send-request", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/students/applications/agencies-by-university", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"ag-1","name":"Global"}]`)
	})
	mux.HandleFunc("/api/students/applications/request-status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, models.RequestStatusResponse{Request: &models.RequestStatusInfo{Status: f.requestStatus}})
	})
	mux.HandleFunc("/api/students/documents/upload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		writeJSON(w, http.StatusOK, map[string]interface{}{"extracted_data": map[string]string{"type": r.FormValue("document_type")}})
	})
	return mux
}

type testAPI struct {
	router http.Handler
	market *fakeMarketplace
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	market := &fakeMarketplace{requestStatus: models.RequestStatusOpen}
	srv := httptest.NewServer(market.handler(t))
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger(t)
	client := backend.NewClient(apphttp.NewClient(srv.URL, 2*time.Second), log)
	router := NewRouter(Deps{
		Store:     storage.NewMemoryStore(),
		KeyPrefix: "visa",
		Backend:   client,
		Wizards:   wizard.NewService(client, config.WizardConfig{PollInterval: 5, RankingConcurrency: 2, RankingTimeout: 500}, nil, log),
		Logger:    log,
		GateWait:  50 * time.Millisecond,
	})
	return &testAPI{router: router, market: market}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(SessionHeader, testSession)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error.Code
}

// ==========================================
// Health & sessions
// ==========================================

func TestHealthAndReady(t *testing.T) {
	a := setupAPI(t)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/ready", nil).Code)

	router := NewRouter(Deps{
		Store:   storage.NewMemoryStore(),
		Logger:  logger.NewNoOpLogger(),
		Wizards: wizard.NewService(nil, config.WizardConfig{}, nil, logger.NewNoOpLogger()),
		Ready:   func(_ context.Context) error { return errors.New("redis down") },
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessions_GeneratesIDWhenMissing(t *testing.T) {
	a := setupAPI(t)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wizard/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get(SessionHeader), 36)

	rec = a.do(t, http.MethodGet, "/api/wizard/dashboard", nil)
	assert.Equal(t, testSession, rec.Header().Get(SessionHeader))

	var summary struct {
		HasActiveApplication bool   `json:"hasActiveApplication"`
		Route                string `json:"route"`
	}
	decode(t, rec, &summary)
	assert.False(t, summary.HasActiveApplication)
	assert.Equal(t, "/student/apply-visa", summary.Route)
}

// ==========================================
// Auth
// ==========================================

func TestLoginThenProfile(t *testing.T) {
	a := setupAPI(t)

	rec := a.do(t, http.MethodGet, "/api/auth/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_REQUIRED", errorCode(t, rec))

	rec = a.do(t, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: "a@b.co", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/auth/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.Profile
	decode(t, rec, &p)
	assert.Equal(t, "ag-1", p.AgencyID)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, "/api/auth/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/auth/profile", nil).Code)
}

func TestLogin_Validation(t *testing.T) {
	a := setupAPI(t)
	rec := a.do(t, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, rec))
}

// ==========================================
// Agency dashboard
// ==========================================

func TestAgencyRequestsAndDecision(t *testing.T) {
	a := setupAPI(t)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: "a@b.co", Password: "pw"}).Code)

	rec := a.do(t, http.MethodGet, "/api/agency/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Requests []models.StudentRequest `json:"requests"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Requests, 1)

	rec = a.do(t, http.MethodPost, "/api/agency/requests/r1/decision", map[string]string{"decision": "accept"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.UpdateRequestStatusInput{{Status: models.RequestStatusInProgress}}, a.market.statusUpdates)

	rec = a.do(t, http.MethodPost, "/api/agency/requests/r1/decision", map[string]string{"decision": "maybe"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ==========================================
// Form builder
// ==========================================

func TestBuilder_EditPreviewSave(t *testing.T) {
	a := setupAPI(t)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: "a@b.co", Password: "pw"}).Code)

	rec := a.do(t, http.MethodPost, "/api/agency/builder/questions", map[string]string{"type": "short-answer"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "no active form yet")

	rec = a.do(t, http.MethodPost, "/api/agency/builder/load", map[string]string{"university": "MIT"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view builderView
	decode(t, rec, &view)
	assert.Equal(t, "MIT Application Form", view.Form.FormTitle)
	assert.False(t, view.Ready)

	rec = a.do(t, http.MethodPost, "/api/agency/builder/questions", map[string]string{"type": "checkboxes"})
	require.Equal(t, http.StatusOK, rec.Code)
	var q models.FormQuestion
	decode(t, rec, &q)
	assert.Equal(t, []string{"Option 1"}, q.Options)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/agency/builder/questions/"+q.ID+"/options", nil).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodDelete, "/api/agency/builder/questions/"+q.ID+"/options/0", nil).Code)
	rec = a.do(t, http.MethodDelete, "/api/agency/builder/questions/"+q.ID+"/options/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, []string{"Option 2"}, view.Form.Questions[0].Options, "last option is kept")

	rec = a.do(t, http.MethodPatch, "/api/agency/builder/questions/"+q.ID, map[string]interface{}{"title": "Documents", "required": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/agency/builder/questions", map[string]string{"type": "signature"})
	assert.Equal(t, "UNSUPPORTED_QUESTION_TYPE", errorCode(t, rec))

	rec = a.do(t, http.MethodGet, "/api/agency/builder/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var preview struct {
		Fields []struct {
			Number int    `json:"number"`
			Widget string `json:"widget"`
		} `json:"fields"`
	}
	decode(t, rec, &preview)
	require.Len(t, preview.Fields, 1)
	assert.Equal(t, "checkboxes", preview.Fields[0].Widget)

	rec = a.do(t, http.MethodGet, "/api/agency/builder/readiness?university=MIT&university=Oxford", nil)
	var readiness struct {
		Ready    bool     `json:"ready"`
		NotReady []string `json:"notReady"`
	}
	decode(t, rec, &readiness)
	assert.False(t, readiness.Ready)
	assert.Equal(t, []string{"Oxford"}, readiness.NotReady)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/agency/builder/save", nil).Code)
	require.NotNil(t, a.market.savedForm)
	assert.Equal(t, "Documents", a.market.savedForm.Questions[0].Title)
}

func TestBuilder_MoveOutOfRange(t *testing.T) {
	a := setupAPI(t)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/agency/builder/select", map[string]string{"university": "MIT"}).Code)
	rec := a.do(t, http.MethodPost, "/api/agency/builder/questions/move", map[string]int{"from": 0, "to": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ==========================================
// Student wizard
// ==========================================

func walkToForm(t *testing.T, a *testAPI) {
	t.Helper()
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: "a@b.co", Password: "pw"}).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/wizard/apply-visa", nil).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/wizard/apply-visa", models.VisaApplication{
		FullName: "Jane", Email: "jane@example.com", Nationality: "IN", DestinationCountry: "USA", Program: "CS",
	}).Code)

	rec := a.do(t, http.MethodGet, "/api/wizard/university-recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unis struct {
		Universities []models.RankedUniversity `json:"universities"`
	}
	decode(t, rec, &unis)
	require.Len(t, unis.Universities, 2)
	assert.Equal(t, "1", unis.Universities[0].Rank)
	assert.Equal(t, models.RankUnavailable, unis.Universities[1].Rank)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/wizard/university-recommendations/select", map[string]string{"university_name": "MIT"}).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/wizard/visa-agency-recommendations", nil).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/wizard/visa-agency-recommendations/select", map[string]string{"agency_id": "ag-1"}).Code)
}

func TestWizard_GateAndSubmit(t *testing.T) {
	a := setupAPI(t)
	a.market.form = `{"formTitle":"MIT","formDescription":"","questions":[
		{"id":"A","type":"checkboxes","title":"Docs","required":true,"options":["Passport"]}]}`
	walkToForm(t, a)

	rec := a.do(t, http.MethodGet, "/api/wizard/application-form", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Gate string `json:"gate"`
	}
	decode(t, rec, &view)
	assert.Equal(t, "waiting", view.Gate)

	rec = a.do(t, http.MethodGet, "/api/wizard/application-form/wait", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, "waiting", view.Gate, "long poll ends with waiting on timeout")

	a.market.mu.Lock()
	a.market.requestStatus = models.RequestStatusAgencySelected
	a.market.mu.Unlock()

	rec = a.do(t, http.MethodGet, "/api/wizard/application-form/wait", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, "proceed", view.Gate)

	rec = a.do(t, http.MethodPost, "/api/wizard/application-form/submit", map[string]interface{}{"answers": map[string]interface{}{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", errorCode(t, rec))

	rec = a.do(t, http.MethodPost, "/api/wizard/application-form/submit", map[string]interface{}{
		"answers": map[string]interface{}{"A": []string{"Passport"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		CurrentStep string `json:"currentStep"`
		Percentage  int    `json:"percentage"`
	}
	decode(t, rec, &summary)
	assert.Equal(t, "document-upload", summary.CurrentStep)
	assert.Equal(t, 83, summary.Percentage)
}

func TestWizard_DocumentUploadAndPayment(t *testing.T) {
	a := setupAPI(t)
	a.market.form = `{"formTitle":"MIT","formDescription":"","questions":[]}`
	a.market.requestStatus = models.RequestStatusInProgress
	walkToForm(t, a)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/wizard/application-form", nil).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/wizard/application-form/submit", map[string]interface{}{"answers": map[string]interface{}{}}).Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("document_type", "passport"))
	part, err := mw.CreateFormFile("file", "passport.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("scan"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/wizard/document-upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(SessionHeader, testSession)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.DocumentUploadResult
	decode(t, rec, &result)
	assert.Equal(t, "passport", result.Fields["type"])

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/wizard/payment", nil).Code)
	rec = a.do(t, http.MethodPost, "/api/wizard/payment/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		HasActiveApplication bool `json:"hasActiveApplication"`
	}
	decode(t, rec, &summary)
	assert.False(t, summary.HasActiveApplication)
}

func TestWizard_SkipAheadConflicts(t *testing.T) {
	a := setupAPI(t)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: "a@b.co", Password: "pw"}).Code)
	rec := a.do(t, http.MethodPost, "/api/wizard/payment", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "STEP_TRANSITION_INVALID", errorCode(t, rec))
}
