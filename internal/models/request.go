package models

import "time"

// RequestStatus is the backend-owned lifecycle state of a student request.
type RequestStatus string

const (
	RequestStatusOpen            RequestStatus = "open"
	RequestStatusReviewingOffers RequestStatus = "reviewing_offers"
	RequestStatusInProgress      RequestStatus = "in_progress"
	RequestStatusAgencySelected  RequestStatus = "agency_selected"
	RequestStatusCompleted       RequestStatus = "completed"
	RequestStatusCancelled       RequestStatus = "cancelled"
)

type RequestStatusInfo struct {
	Status     RequestStatus `json:"status"`
	AgencyName string        `json:"agency_name,omitempty"`
}

// RequestStatusResponse is the body of GET /api/students/applications/request-status.
type RequestStatusResponse struct {
	Request *RequestStatusInfo `json:"request"`
}

// StudentRequest is one entry of the agency request list.
type StudentRequest struct {
	ID             string                 `json:"id"`
	StudentName    string                 `json:"student_name,omitempty"`
	StudentEmail   string                 `json:"student_email,omitempty"`
	UniversityName string                 `json:"university_name,omitempty"`
	Status         RequestStatus          `json:"status"`
	CreatedAt      *time.Time             `json:"created_at,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

// RequestDecision is an agency's accept/reject answer to a request.
type RequestDecision string

const (
	DecisionAccept RequestDecision = "accept"
	DecisionReject RequestDecision = "reject"
)

// Status returns the request status the decision transitions to.
func (d RequestDecision) Status() (RequestStatus, error) {
	switch d {
	case DecisionAccept:
		return RequestStatusInProgress, nil
	case DecisionReject:
		return RequestStatusCancelled, nil
	default:
		return "", ErrInvalidRequestDecision
	}
}

type UpdateRequestStatusInput struct {
	Status RequestStatus `json:"status"`
}
