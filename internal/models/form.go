package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionType is the closed set of question kinds an agency form may contain.
type QuestionType string

const (
	QuestionShortAnswer    QuestionType = "short-answer"
	QuestionParagraph      QuestionType = "paragraph"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionCheckboxes     QuestionType = "checkboxes"
	QuestionDropdown       QuestionType = "dropdown"
	QuestionDate           QuestionType = "date"
	QuestionFileUpload     QuestionType = "file-upload"
)

// QuestionTypes lists every supported kind in builder palette order.
var QuestionTypes = []QuestionType{
	QuestionShortAnswer,
	QuestionParagraph,
	QuestionMultipleChoice,
	QuestionCheckboxes,
	QuestionDropdown,
	QuestionDate,
	QuestionFileUpload,
}

func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// HasOptions reports whether questions of this type carry an option list.
func (t QuestionType) HasOptions() bool {
	switch t {
	case QuestionMultipleChoice, QuestionCheckboxes, QuestionDropdown:
		return true
	default:
		return false
	}
}

// HasPlaceholder reports whether a placeholder is meaningful for this type.
func (t QuestionType) HasPlaceholder() bool {
	return t == QuestionShortAnswer || t == QuestionParagraph
}

// AnswerShape is the shape an answer to a question must take.
type AnswerShape int

const (
	ShapeText AnswerShape = iota
	ShapeChoices
	ShapeFile
)

// AnswerShape returns the expected answer shape, or an error for unknown types.
func (t QuestionType) AnswerShape() (AnswerShape, error) {
	switch t {
	case QuestionShortAnswer, QuestionParagraph, QuestionMultipleChoice, QuestionDropdown, QuestionDate:
		return ShapeText, nil
	case QuestionCheckboxes:
		return ShapeChoices, nil
	case QuestionFileUpload:
		return ShapeFile, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedQuestionType, string(t))
	}
}

// FormQuestion is one entry of an agency form.
type FormQuestion struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
	Required    bool         `json:"required"`
	Options     []string     `json:"options,omitempty"`
}

// Clone returns a copy that shares no slices with q.
func (q FormQuestion) Clone() FormQuestion {
	if q.Options != nil {
		q.Options = append([]string(nil), q.Options...)
	}
	return q
}

// FormModel is the agency-authored question schema for one university.
type FormModel struct {
	FormTitle       string         `json:"formTitle"`
	FormDescription string         `json:"formDescription"`
	Questions       []FormQuestion `json:"questions"`
}

// Question returns the question with the given id and its index.
func (f *FormModel) Question(id string) (*FormQuestion, int) {
	for i := range f.Questions {
		if f.Questions[i].ID == id {
			return &f.Questions[i], i
		}
	}
	return nil, -1
}

// Ready reports whether the form has at least one question.
func (f *FormModel) Ready() bool {
	return f != nil && len(f.Questions) > 0
}

func (f *FormModel) Clone() *FormModel {
	if f == nil {
		return nil
	}
	out := &FormModel{FormTitle: f.FormTitle, FormDescription: f.FormDescription}
	out.Questions = make([]FormQuestion, len(f.Questions))
	for i, q := range f.Questions {
		out.Questions[i] = q.Clone()
	}
	return out
}

// FileRef is the opaque handle stored for a file-upload answer.
type FileRef struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// Answer holds exactly one of the three answer shapes.
type Answer struct {
	Text    *string
	Choices []string
	File    *FileRef
}

func TextAnswer(v string) Answer {
	return Answer{Text: &v}
}

func ChoicesAnswer(v ...string) Answer {
	if v == nil {
		v = []string{}
	}
	return Answer{Choices: v}
}

func FileAnswer(f FileRef) Answer {
	return Answer{File: &f}
}

// IsEmpty reports whether the answer would fail a required check.
func (a Answer) IsEmpty() bool {
	switch {
	case a.Text != nil:
		return strings.TrimSpace(*a.Text) == ""
	case a.Choices != nil:
		return len(a.Choices) == 0
	case a.File != nil:
		return a.File.Name == "" && a.File.Reference == ""
	default:
		return true
	}
}

// MarshalJSON encodes text as a string, choices as an array and files as an object.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch {
	case a.Text != nil:
		return json.Marshal(*a.Text)
	case a.Choices != nil:
		return json.Marshal(a.Choices)
	case a.File != nil:
		return json.Marshal(a.File)
	default:
		return []byte("null"), nil
	}
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	*a = Answer{}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.Text = &s
	case '[':
		choices := []string{}
		if err := json.Unmarshal(data, &choices); err != nil {
			return err
		}
		a.Choices = choices
	case '{':
		var f FileRef
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		a.File = &f
	default:
		return fmt.Errorf("answer must be a string, array or object, got %s", trimmed)
	}
	return nil
}

// FormAnswers maps question id to answer.
type FormAnswers map[string]Answer
