package models

import "time"

// Step is one position of the student application wizard.
type Step string

const (
	StepApplyVisa                 Step = "apply-visa"
	StepUniversityRecommendations Step = "university-recommendations"
	StepAgencyRecommendations     Step = "visa-agency-recommendations"
	StepApplicationForm           Step = "application-form"
	StepDocumentUpload            Step = "document-upload"
	StepPayment                   Step = "payment"
	StepCompleted                 Step = "completed"
)

// Steps is the wizard order.
var Steps = []Step{
	StepApplyVisa,
	StepUniversityRecommendations,
	StepAgencyRecommendations,
	StepApplicationForm,
	StepDocumentUpload,
	StepPayment,
	StepCompleted,
}

// TrackedSteps are the steps counted by the completion percentage.
var TrackedSteps = Steps[:len(Steps)-1]

func (s Step) Valid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in Steps, or -1.
func (s Step) Index() int {
	for i, known := range Steps {
		if s == known {
			return i
		}
	}
	return -1
}

// Next returns the step after s. The terminal step has no successor.
func (s Step) Next() (Step, bool) {
	i := s.Index()
	if i < 0 || i == len(Steps)-1 {
		return "", false
	}
	return Steps[i+1], true
}

// ApplicationProgress is the persisted wizard position of one session.
type ApplicationProgress struct {
	CurrentStep     Step                   `json:"currentStep"`
	CompletedSteps  []Step                 `json:"completedSteps"`
	LastUpdated     time.Time              `json:"lastUpdated"`
	ApplicationData map[string]interface{} `json:"applicationData"`
}

// HasCompleted reports whether step is in CompletedSteps.
func (p *ApplicationProgress) HasCompleted(step Step) bool {
	for _, s := range p.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}
