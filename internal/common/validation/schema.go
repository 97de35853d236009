package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"visa-portal/internal/models"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var (
	formSchemaOnce sync.Once
	formSchema     *gojsonschema.Schema
	formSchemaErr  error
)

// FormModelSchema returns the JSON schema a persisted FormModel must satisfy.
func FormModelSchema() map[string]interface{} {
	types := make([]interface{}, 0, len(models.QuestionTypes))
	optionTypes := make([]interface{}, 0, 3)
	for _, qt := range models.QuestionTypes {
		types = append(types, string(qt))
		if qt.HasOptions() {
			optionTypes = append(optionTypes, string(qt))
		}
	}

	question := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"id", "type"},
		"properties": map[string]interface{}{
			"id":          map[string]interface{}{"type": "string", "minLength": 1},
			"type":        map[string]interface{}{"type": "string", "enum": types},
			"title":       map[string]interface{}{"type": "string"},
			"description": map[string]interface{}{"type": "string"},
			"placeholder": map[string]interface{}{"type": "string"},
			"required":    map[string]interface{}{"type": "boolean"},
			"options": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"if": map[string]interface{}{
			"properties": map[string]interface{}{
				"type": map[string]interface{}{"enum": optionTypes},
			},
		},
		"then": map[string]interface{}{
			"required": []interface{}{"options"},
			"properties": map[string]interface{}{
				"options": map[string]interface{}{"minItems": 1},
			},
		},
	}

	return map[string]interface{}{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []interface{}{"questions"},
		"properties": map[string]interface{}{
			"formTitle":       map[string]interface{}{"type": "string"},
			"formDescription": map[string]interface{}{"type": "string"},
			"questions": map[string]interface{}{
				"type":  "array",
				"items": question,
			},
		},
	}
}

func compiledFormSchema() (*gojsonschema.Schema, error) {
	formSchemaOnce.Do(func() {
		formSchema, formSchemaErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(FormModelSchema()))
	})
	return formSchema, formSchemaErr
}

// ValidateFormModelJSON checks a raw FormModel document: schema conformance plus
// unique question ids.
func ValidateFormModelJSON(data []byte) *ValidationResult {
	schema, err := compiledFormSchema()
	if err != nil {
		return invalid("", fmt.Sprintf("schema compile failed: %v", err), "SCHEMA_ERROR")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return invalid("", fmt.Sprintf("document is not valid JSON: %v", err), "INVALID_JSON")
	}

	errs := schemaErrors(result)
	if len(errs) == 0 {
		errs = append(errs, duplicateIDs(data)...)
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidateFormModel checks an in-memory FormModel by its JSON form.
func ValidateFormModel(form *models.FormModel) *ValidationResult {
	if form == nil {
		return invalid("", "form is required", "REQUIRED_FIELD_MISSING")
	}
	schema, err := compiledFormSchema()
	if err != nil {
		return invalid("", fmt.Sprintf("schema compile failed: %v", err), "SCHEMA_ERROR")
	}
	if form.Questions == nil {
		// a fresh form encodes its questions as null
		form = &models.FormModel{FormTitle: form.FormTitle, FormDescription: form.FormDescription, Questions: []models.FormQuestion{}}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(form))
	if err != nil {
		return invalid("", err.Error(), "INVALID_JSON")
	}

	errs := schemaErrors(result)
	ids := make([]string, len(form.Questions))
	for i, q := range form.Questions {
		ids[i] = q.ID
	}
	errs = append(errs, uniqueIDs(ids)...)
	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func duplicateIDs(data []byte) []ValidationError {
	var doc struct {
		Questions []struct {
			ID string `json:"id"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	ids := make([]string, len(doc.Questions))
	for i, q := range doc.Questions {
		ids[i] = q.ID
	}
	return uniqueIDs(ids)
}

func uniqueIDs(ids []string) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		if seen[id] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("questions.%d.id", i),
				Message: fmt.Sprintf("duplicate question id %q", id),
				Code:    "DUPLICATE_ID",
			})
		}
		seen[id] = true
	}
	return errs
}

func schemaErrors(result *gojsonschema.Result) []ValidationError {
	errs := []ValidationError{}
	for _, re := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	return errs
}

func invalid(field, message, code string) *ValidationResult {
	return &ValidationResult{
		Valid:  false,
		Errors: []ValidationError{{Field: field, Message: message, Code: code}},
	}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		if err.Field == "" {
			messages[i] = err.Message
			continue
		}
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	emailPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailPattern.MatchString(email)
}
