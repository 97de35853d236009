package models

// VisaApplication is the record collected on the apply-visa step.
type VisaApplication struct {
	FullName           string  `json:"full_name"`
	Email              string  `json:"email"`
	Nationality        string  `json:"nationality"`
	DestinationCountry string  `json:"destination_country"`
	Program            string  `json:"program"`
	DegreeLevel        string  `json:"degree_level"`
	GPA                float64 `json:"gpa"`
	EnglishTest        string  `json:"english_test,omitempty"`
	EnglishScore       float64 `json:"english_score,omitempty"`
	Budget             float64 `json:"budget,omitempty"`
	IntakeYear         int     `json:"intake_year,omitempty"`
}

// Features is the payload for POST /api/predict-university.
func (v VisaApplication) Features() map[string]interface{} {
	return map[string]interface{}{
		"nationality":         v.Nationality,
		"destination_country": v.DestinationCountry,
		"program":             v.Program,
		"degree_level":        v.DegreeLevel,
		"gpa":                 v.GPA,
		"english_test":        v.EnglishTest,
		"english_score":       v.EnglishScore,
		"budget":              v.Budget,
		"intake_year":         v.IntakeYear,
	}
}

type UniversityPrediction struct {
	Name        string  `json:"name"`
	Country     string  `json:"country,omitempty"`
	Probability float64 `json:"probability,omitempty"`
}

type PredictUniversityResponse struct {
	Top5 []UniversityPrediction `json:"top_5"`
}

type PredictRankRequest struct {
	UniversityName string `json:"university_name"`
}

type PredictRankResponse struct {
	PredictedRank string `json:"predicted_rank"`
}

// RankUnavailable marks a university whose rank lookup failed.
const RankUnavailable = "N/A"

// RankedUniversity is a recommendation enriched with its predicted rank.
type RankedUniversity struct {
	UniversityPrediction
	Rank string `json:"rank"`
}

type Agency struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Country     string   `json:"country,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Services    []string `json:"services,omitempty"`
	SuccessRate float64  `json:"success_rate,omitempty"`
}

type SelectedUniversityInput struct {
	UniversityName string `json:"university_name"`
}

type SendRequestInput struct {
	AgencyID       string `json:"agency_id"`
	UniversityName string `json:"university_name"`
}

// DocumentUploadResult carries the structured fields extracted from a document.
type DocumentUploadResult struct {
	DocumentType string                 `json:"document_type"`
	Fields       map[string]interface{} `json:"extracted_data"`
}
