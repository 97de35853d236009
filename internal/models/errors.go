package models

import "errors"

var (
	ErrUnsupportedQuestionType = errors.New("UNSUPPORTED_QUESTION_TYPE")
	ErrInvalidStep             = errors.New("INVALID_STEP")
	ErrInvalidRequestDecision  = errors.New("INVALID_REQUEST_DECISION")
)
