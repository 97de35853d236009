package progress

import "visa-portal/internal/models"

const dashboardRoute = "/student/dashboard"

var displayNames = map[models.Step]string{
	models.StepApplyVisa:                 "Apply Visa",
	models.StepUniversityRecommendations: "University Recommendations",
	models.StepAgencyRecommendations:     "Visa Agency Recommendations",
	models.StepApplicationForm:           "Application Form",
	models.StepDocumentUpload:            "Document Upload",
	models.StepPayment:                   "Payment",
	models.StepCompleted:                 "Completed",
}

// StepDisplayName returns the label for step, or the raw value if unknown.
func StepDisplayName(step models.Step) string {
	if name, ok := displayNames[step]; ok {
		return name
	}
	return string(step)
}

// StepRoute maps a step to its wizard path. The terminal step lands on the dashboard
// and anything unknown on the first step.
func StepRoute(step models.Step) string {
	switch {
	case step == models.StepCompleted:
		return dashboardRoute
	case step.Valid():
		return "/student/" + string(step)
	default:
		return "/student/" + string(models.StepApplyVisa)
	}
}
