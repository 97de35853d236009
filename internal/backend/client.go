// Package backend is the typed client of the marketplace backend: auth, agency
// requests, forms, ranking predictions and document extraction.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	apperrors "visa-portal/internal/common/errors"
	apphttp "visa-portal/internal/common/http"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/validation"
	"visa-portal/internal/models"
)

const (
	pathLogin                = "/auth/login"
	pathProfile              = "/auth/profile"
	pathAgencyForms          = "/auth/agency/forms"
	pathAgencyRequests       = "/api/agency/requests"
	pathRequestStatus        = "/api/students/applications/request-status"
	pathAgenciesByUniversity = "/api/students/applications/agencies-by-university"
	pathSelectedUniversity   = "/api/students/applications/selected-university"
	pathSendRequest          = "/api/students/applications/send-request"
	pathPredictUniversity    = "/api/predict-university"
	pathPredictRank          = "/api/predict-rank"
	pathDocumentUpload       = "/api/students/documents/upload"
)

type Client struct {
	http   *apphttp.Client
	logger logger.Logger
}

func NewClient(httpClient *apphttp.Client, log logger.Logger) *Client {
	return &Client{
		http:   httpClient,
		logger: log.WithFields(map[string]interface{}{"component": "backend"}),
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	err := c.http.DoJSON(ctx, apphttp.Request{
		Method: http.MethodPost,
		Path:   pathLogin,
		Body:   models.LoginRequest{Email: email, Password: password},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, apperrors.NewBackendRequestFailedError(pathLogin, http.StatusOK, "response carried no token")
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context, token string) (*models.Profile, error) {
	var out models.Profile
	if err := c.http.DoJSON(ctx, apphttp.Request{Method: http.MethodGet, Path: pathProfile, Token: token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AgencyRequests lists the requests addressed to the calling agency. The backend
// answers either with a bare array or with {"requests": [...]}.
func (c *Client) AgencyRequests(ctx context.Context, token string) ([]models.StudentRequest, error) {
	var raw json.RawMessage
	if err := c.http.DoJSON(ctx, apphttp.Request{Method: http.MethodGet, Path: pathAgencyRequests, Token: token}, &raw); err != nil {
		return nil, err
	}
	var out []models.StudentRequest
	if err := decodeList(raw, "requests", &out); err != nil {
		return nil, apperrors.NewBackendRequestFailedError(pathAgencyRequests, http.StatusOK, err.Error())
	}
	return out, nil
}

// UpdateRequestStatus moves a request to status.
func (c *Client) UpdateRequestStatus(ctx context.Context, token, requestID string, status models.RequestStatus) error {
	return c.http.DoJSON(ctx, apphttp.Request{
		Method:   http.MethodPut,
		Path:     pathAgencyRequests + "/" + url.PathEscape(requestID) + "/status",
		Endpoint: pathAgencyRequests + "/{id}/status",
		Token:    token,
		Body:     models.UpdateRequestStatusInput{Status: status},
	}, nil)
}

// RequestStatus returns the status of the student's current request. A missing
// request is returned as nil.
func (c *Client) RequestStatus(ctx context.Context, token string) (*models.RequestStatusInfo, error) {
	var out models.RequestStatusResponse
	if err := c.http.DoJSON(ctx, apphttp.Request{Method: http.MethodGet, Path: pathRequestStatus, Token: token}, &out); err != nil {
		return nil, err
	}
	return out.Request, nil
}

// FetchForm loads the form an agency defined for a university. A 404 maps to
// RESOURCE_NOT_FOUND, a body that fails the form schema to FORM_SCHEMA_INVALID.
func (c *Client) FetchForm(ctx context.Context, token, agencyID, universityName string) (*models.FormModel, error) {
	var raw json.RawMessage
	err := c.http.DoJSON(ctx, apphttp.Request{
		Method: http.MethodGet,
		Path:   pathAgencyForms,
		Query:  url.Values{"agency_id": {agencyID}, "university_name": {universityName}},
		Token:  token,
	}, &raw)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, apperrors.NewResourceNotFoundError("Application form",
				fmt.Sprintf("agency: %s, university: %s", agencyID, universityName))
		}
		return nil, err
	}

	if result := validation.ValidateFormModelJSON(raw); !result.Valid {
		c.logger.Warn("backend returned an invalid form", map[string]interface{}{
			"agencyId":   agencyID,
			"university": universityName,
			"errors":     result.GetErrorMessages(),
		})
		return nil, apperrors.NewFormSchemaInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var form models.FormModel
	if err := json.Unmarshal(raw, &form); err != nil {
		return nil, apperrors.NewFormSchemaInvalidError(err.Error())
	}
	return &form, nil
}

// SaveForm persists an agency form for a university.
func (c *Client) SaveForm(ctx context.Context, token, agencyID, universityName string, form *models.FormModel) error {
	if result := validation.ValidateFormModel(form); !result.Valid {
		return apperrors.NewFormSchemaInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return c.http.DoJSON(ctx, apphttp.Request{
		Method: http.MethodPut,
		Path:   pathAgencyForms,
		Query:  url.Values{"agency_id": {agencyID}, "university_name": {universityName}},
		Token:  token,
		Body:   form,
	}, nil)
}

func (c *Client) PredictUniversity(ctx context.Context, token string, features map[string]interface{}) ([]models.UniversityPrediction, error) {
	var out models.PredictUniversityResponse
	err := c.http.DoJSON(ctx, apphttp.Request{
		Method: http.MethodPost,
		Path:   pathPredictUniversity,
		Token:  token,
		Body:   features,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Top5, nil
}

func (c *Client) PredictRank(ctx context.Context, token, universityName string) (string, error) {
	var out models.PredictRankResponse
	err := c.http.DoJSON(ctx, apphttp.Request{
		Method: http.MethodPost,
		Path:   pathPredictRank,
		Token:  token,
		Body:   models.PredictRankRequest{UniversityName: universityName},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.PredictedRank == "" {
		return "", apperrors.NewBackendRequestFailedError(pathPredictRank, http.StatusOK, "empty predicted_rank")
	}
	return out.PredictedRank, nil
}

// AgenciesByUniversity lists the agencies serving a university.
func (c *Client) AgenciesByUniversity(ctx context.Context, token, university string) ([]models.Agency, error) {
	var raw json.RawMessage
	err := c.http.DoJSON(ctx, apphttp.Request{
		Method: http.MethodGet,
		Path:   pathAgenciesByUniversity,
		Query:  url.Values{"university": {university}},
		Token:  token,
	}, &raw)
	if err != nil {
		return nil, err
	}
	var out []models.Agency
	if err := decodeList(raw, "agencies", &out); err != nil {
		return nil, apperrors.NewBackendRequestFailedError(pathAgenciesByUniversity, http.StatusOK, err.Error())
	}
	return out, nil
}

func (c *Client) SetSelectedUniversity(ctx context.Context, token, universityName string) error {
	return c.http.DoJSON(ctx, apphttp.Request{
		Method: http.MethodPut,
		Path:   pathSelectedUniversity,
		Token:  token,
		Body:   models.SelectedUniversityInput{UniversityName: universityName},
	}, nil)
}

func (c *Client) SendRequest(ctx context.Context, token string, in models.SendRequestInput) error {
	return c.http.DoJSON(ctx, apphttp.Request{
		Method: http.MethodPost,
		Path:   pathSendRequest,
		Token:  token,
		Body:   in,
	}, nil)
}

// UploadDocument sends a passport or CV as multipart form data and returns the
// fields the backend extracted from it.
func (c *Client) UploadDocument(ctx context.Context, token, documentType, filename string, content io.Reader) (*models.DocumentUploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("document_type", documentType); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("read upload: %v", err))
	}
	if err := mw.Close(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	var raw map[string]interface{}
	err = c.http.DoJSON(ctx, apphttp.Request{
		Method:      http.MethodPost,
		Path:        pathDocumentUpload,
		Token:       token,
		RawBody:     &buf,
		ContentType: mw.FormDataContentType(),
	}, &raw)
	if err != nil {
		return nil, err
	}

	result := &models.DocumentUploadResult{DocumentType: documentType, Fields: raw}
	if nested, ok := raw["extracted_data"].(map[string]interface{}); ok {
		result.Fields = nested
	}
	if result.Fields == nil {
		result.Fields = map[string]interface{}{}
	}
	return result, nil
}

func decodeList(raw json.RawMessage, key string, out interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	inner, ok := wrapped[key]
	if !ok {
		return fmt.Errorf("response has no %q list", key)
	}
	return json.Unmarshal(inner, out)
}

func statusOf(err error) int {
	stdErr, ok := apperrors.AsStandardError(err)
	if !ok {
		return 0
	}
	status, _ := stdErr.Metadata["status"].(int)
	return status
}
