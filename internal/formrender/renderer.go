// Package formrender turns a FormModel into typed fields and collects and
// validates the answers given to them.
package formrender

import (
	"errors"
	"fmt"

	"visa-portal/internal/models"
)

var (
	ErrUnknownQuestion = errors.New("UNKNOWN_QUESTION")
	ErrAnswerShape     = errors.New("ANSWER_SHAPE_MISMATCH")
)

// Widget is the interaction control a question is rendered with.
type Widget string

const (
	WidgetText       Widget = "text"
	WidgetTextArea   Widget = "textarea"
	WidgetRadio      Widget = "radio"
	WidgetCheckboxes Widget = "checkboxes"
	WidgetDropdown   Widget = "dropdown"
	WidgetDate       Widget = "date"
	WidgetFile       Widget = "file"
)

// WidgetFor maps a question type to its widget. Unknown types are an error.
func WidgetFor(qt models.QuestionType) (Widget, error) {
	switch qt {
	case models.QuestionShortAnswer:
		return WidgetText, nil
	case models.QuestionParagraph:
		return WidgetTextArea, nil
	case models.QuestionMultipleChoice:
		return WidgetRadio, nil
	case models.QuestionCheckboxes:
		return WidgetCheckboxes, nil
	case models.QuestionDropdown:
		return WidgetDropdown, nil
	case models.QuestionDate:
		return WidgetDate, nil
	case models.QuestionFileUpload:
		return WidgetFile, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedQuestionType, string(qt))
	}
}

// Field is one rendered question.
type Field struct {
	Number   int                 `json:"number"`
	Question models.FormQuestion `json:"question"`
	Widget   Widget              `json:"widget"`
	Value    *models.Answer      `json:"value,omitempty"`
}

// Collector accumulates answers for one form.
type Collector struct {
	form    *models.FormModel
	answers models.FormAnswers
}

// NewCollector starts from a copy of initial, which may be nil.
func NewCollector(form *models.FormModel, initial models.FormAnswers) *Collector {
	answers := make(models.FormAnswers, len(initial))
	for k, v := range initial {
		answers[k] = v
	}
	return &Collector{form: form, answers: answers}
}

func (c *Collector) question(id string) (*models.FormQuestion, models.AnswerShape, error) {
	q, _ := c.form.Question(id)
	if q == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	shape, err := q.Type.AnswerShape()
	if err != nil {
		return nil, 0, err
	}
	return q, shape, nil
}

// SetAnswer overwrites the answer of a single-value question.
func (c *Collector) SetAnswer(questionID, value string) error {
	_, shape, err := c.question(questionID)
	if err != nil {
		return err
	}
	if shape != models.ShapeText {
		return fmt.Errorf("%w: %s takes no text answer", ErrAnswerShape, questionID)
	}
	c.answers[questionID] = models.TextAnswer(value)
	return nil
}

// SetFile records the handle of an uploaded file.
func (c *Collector) SetFile(questionID string, file models.FileRef) error {
	_, shape, err := c.question(questionID)
	if err != nil {
		return err
	}
	if shape != models.ShapeFile {
		return fmt.Errorf("%w: %s takes no file", ErrAnswerShape, questionID)
	}
	c.answers[questionID] = models.FileAnswer(file)
	return nil
}

// ToggleCheckboxOption adds option when checked and absent, and removes every
// occurrence when unchecked. The rest of the selection keeps its order.
func (c *Collector) ToggleCheckboxOption(questionID, option string, checked bool) error {
	_, shape, err := c.question(questionID)
	if err != nil {
		return err
	}
	if shape != models.ShapeChoices {
		return fmt.Errorf("%w: %s is not a checkbox question", ErrAnswerShape, questionID)
	}

	current := c.answers[questionID].Choices
	next := make([]string, 0, len(current)+1)
	present := false
	for _, v := range current {
		if v == option {
			present = true
			if !checked {
				continue
			}
		}
		next = append(next, v)
	}
	if checked && !present {
		next = append(next, option)
	}
	c.answers[questionID] = models.ChoicesAnswer(next...)
	return nil
}

// Answers returns a copy of the collected answers.
func (c *Collector) Answers() models.FormAnswers {
	out := make(models.FormAnswers, len(c.answers))
	for k, v := range c.answers {
		out[k] = v
	}
	return out
}

// Validate runs the required-field check over the collected answers.
func (c *Collector) Validate() error {
	return ValidateRequired(c.form, c.answers)
}

// Render lists the form's questions in order with their widgets and current values.
func (c *Collector) Render() ([]Field, error) {
	return Render(c.form, c.answers)
}

// Render is the stateless form of Collector.Render, used for agency preview.
func Render(form *models.FormModel, answers models.FormAnswers) ([]Field, error) {
	if form == nil {
		return nil, nil
	}
	fields := make([]Field, 0, len(form.Questions))
	for i, q := range form.Questions {
		widget, err := WidgetFor(q.Type)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		f := Field{Number: i + 1, Question: q.Clone(), Widget: widget}
		if a, ok := answers[q.ID]; ok {
			a := a
			f.Value = &a
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// RequiredFieldError names the first required question without a usable answer.
type RequiredFieldError struct {
	QuestionID string
	Title      string
	Number     int
}

func (e *RequiredFieldError) Error() string {
	label := e.Title
	if label == "" {
		label = fmt.Sprintf("question %d", e.Number)
	}
	return fmt.Sprintf("required question not answered: %s", label)
}

// ValidateRequired checks every required question in form order. Text must be
// non-blank, choices non-empty and a file present; an answer of the wrong shape
// counts as missing.
func ValidateRequired(form *models.FormModel, answers models.FormAnswers) error {
	if form == nil {
		return nil
	}
	for i, q := range form.Questions {
		if !q.Required {
			continue
		}
		shape, err := q.Type.AnswerShape()
		if err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
		a, ok := answers[q.ID]
		if !ok || !satisfies(a, shape) {
			return &RequiredFieldError{QuestionID: q.ID, Title: q.Title, Number: i + 1}
		}
	}
	return nil
}

func satisfies(a models.Answer, shape models.AnswerShape) bool {
	switch shape {
	case models.ShapeText:
		return a.Text != nil && !a.IsEmpty()
	case models.ShapeChoices:
		return len(a.Choices) > 0
	case models.ShapeFile:
		return a.File != nil && !a.IsEmpty()
	default:
		return false
	}
}
