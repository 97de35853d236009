// Package formbuilder edits agency application forms, one per university, through
// order-preserving incremental operations.
package formbuilder

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"visa-portal/internal/models"
)

var (
	ErrNoActiveForm    = errors.New("NO_ACTIVE_FORM")
	ErrIndexOutOfRange = errors.New("INDEX_OUT_OF_RANGE")
)

const (
	copySuffix         = " (Copy)"
	defaultDescription = "Please fill out all required fields to complete your application."
)

// QuestionPatch is a shallow update; nil fields are left untouched.
type QuestionPatch struct {
	Type        *models.QuestionType `json:"type,omitempty"`
	Title       *string              `json:"title,omitempty"`
	Description *string              `json:"description,omitempty"`
	Placeholder *string              `json:"placeholder,omitempty"`
	Required    *bool                `json:"required,omitempty"`
	Options     []string             `json:"options,omitempty"`
}

// MetadataPatch is a shallow update of form title and description.
type MetadataPatch struct {
	FormTitle       *string `json:"formTitle,omitempty"`
	FormDescription *string `json:"formDescription,omitempty"`
}

// Builder holds one form per university and edits the active one.
// It is not safe for concurrent use.
type Builder struct {
	forms    map[string]*models.FormModel
	active   string
	selected string
	newID    func() string
}

func New() *Builder {
	return &Builder{
		forms: make(map[string]*models.FormModel),
		newID: uuid.NewString,
	}
}

// Draft is the serializable state of a Builder.
type Draft struct {
	Forms    map[string]*models.FormModel `json:"forms"`
	Active   string                       `json:"active,omitempty"`
	Selected string                       `json:"selected,omitempty"`
}

// FromDraft restores a builder. A nil draft yields an empty builder.
func FromDraft(d *Draft) *Builder {
	b := New()
	if d == nil {
		return b
	}
	for k, f := range d.Forms {
		if f != nil {
			b.forms[k] = f.Clone()
		}
	}
	if _, ok := b.forms[d.Active]; ok {
		b.active = d.Active
		if f := b.forms[d.Active]; f != nil {
			if q, _ := f.Question(d.Selected); q != nil {
				b.selected = d.Selected
			}
		}
	}
	return b
}

func (b *Builder) Draft() *Draft {
	d := &Draft{Forms: make(map[string]*models.FormModel, len(b.forms)), Active: b.active, Selected: b.selected}
	for k, f := range b.forms {
		d.Forms[k] = f.Clone()
	}
	return d
}

// InitializeForm creates an empty form for universityKey unless one exists.
func (b *Builder) InitializeForm(universityKey string) {
	if _, ok := b.forms[universityKey]; ok {
		return
	}
	b.forms[universityKey] = &models.FormModel{
		FormTitle:       universityKey + " Application Form",
		FormDescription: defaultDescription,
		Questions:       []models.FormQuestion{},
	}
}

// SelectUniversity makes universityKey's form the active one, creating it if needed.
func (b *Builder) SelectUniversity(universityKey string) {
	b.InitializeForm(universityKey)
	if b.active != universityKey {
		b.selected = ""
	}
	b.active = universityKey
}

// SetForm replaces the form stored for universityKey, e.g. with a saved copy.
func (b *Builder) SetForm(universityKey string, form *models.FormModel) {
	if form == nil {
		return
	}
	clone := form.Clone()
	if clone.Questions == nil {
		clone.Questions = []models.FormQuestion{}
	}
	b.forms[universityKey] = clone
}

func (b *Builder) ActiveUniversity() string {
	return b.active
}

// ActiveForm returns the form being edited, or nil.
func (b *Builder) ActiveForm() *models.FormModel {
	return b.forms[b.active]
}

// Form returns the form for universityKey, or nil.
func (b *Builder) Form(universityKey string) *models.FormModel {
	return b.forms[universityKey]
}

func (b *Builder) SelectedQuestion() string {
	return b.selected
}

func (b *Builder) SelectQuestion(id string) {
	b.selected = id
}

func (b *Builder) activeForm() (*models.FormModel, error) {
	f := b.forms[b.active]
	if f == nil {
		return nil, ErrNoActiveForm
	}
	return f, nil
}

// AddQuestion appends a new question of type qt and selects it.
func (b *Builder) AddQuestion(qt models.QuestionType) (*models.FormQuestion, error) {
	if !qt.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedQuestionType, string(qt))
	}
	form, err := b.activeForm()
	if err != nil {
		return nil, err
	}

	q := models.FormQuestion{ID: b.newID(), Type: qt}
	if qt.HasOptions() {
		q.Options = []string{"Option 1"}
	}
	form.Questions = append(form.Questions, q)
	b.selected = q.ID
	added := q.Clone()
	return &added, nil
}

// UpdateQuestion applies patch to the question with id. Unknown ids are a no-op.
// A type change normalizes the options to what the new type carries.
func (b *Builder) UpdateQuestion(id string, patch QuestionPatch) error {
	form, err := b.activeForm()
	if err != nil {
		return err
	}
	q, _ := form.Question(id)
	if q == nil {
		return nil
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnsupportedQuestionType, string(*patch.Type))
	}

	if patch.Type != nil {
		q.Type = *patch.Type
	}
	if patch.Title != nil {
		q.Title = *patch.Title
	}
	if patch.Description != nil {
		q.Description = *patch.Description
	}
	if patch.Placeholder != nil {
		q.Placeholder = *patch.Placeholder
	}
	if patch.Required != nil {
		q.Required = *patch.Required
	}
	if patch.Options != nil {
		q.Options = append([]string(nil), patch.Options...)
	}

	switch {
	case q.Type.HasOptions() && len(q.Options) == 0:
		q.Options = []string{"Option 1"}
	case !q.Type.HasOptions():
		q.Options = nil
	}
	if !q.Type.HasPlaceholder() {
		q.Placeholder = ""
	}
	return nil
}

// DeleteQuestion removes the question with id and clears the selection if it was selected.
func (b *Builder) DeleteQuestion(id string) error {
	form, err := b.activeForm()
	if err != nil {
		return err
	}
	_, i := form.Question(id)
	if i < 0 {
		return nil
	}
	form.Questions = append(form.Questions[:i], form.Questions[i+1:]...)
	if b.selected == id {
		b.selected = ""
	}
	return nil
}

// DuplicateQuestion inserts a copy right after the source question.
func (b *Builder) DuplicateQuestion(id string) (*models.FormQuestion, error) {
	form, err := b.activeForm()
	if err != nil {
		return nil, err
	}
	src, i := form.Question(id)
	if src == nil {
		return nil, nil
	}

	dup := src.Clone()
	dup.ID = b.newID()
	dup.Title += copySuffix

	questions := make([]models.FormQuestion, 0, len(form.Questions)+1)
	questions = append(questions, form.Questions[:i+1]...)
	questions = append(questions, dup)
	questions = append(questions, form.Questions[i+1:]...)
	form.Questions = questions
	out := dup.Clone()
	return &out, nil
}

// MoveQuestion moves the question at from to index to, keeping the relative order
// of every other question.
func (b *Builder) MoveQuestion(from, to int) error {
	form, err := b.activeForm()
	if err != nil {
		return err
	}
	n := len(form.Questions)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d with %d questions", ErrIndexOutOfRange, from, to, n)
	}
	if from == to {
		return nil
	}

	moved := form.Questions[from]
	rest := make([]models.FormQuestion, 0, n)
	rest = append(rest, form.Questions[:from]...)
	rest = append(rest, form.Questions[from+1:]...)

	out := make([]models.FormQuestion, 0, n)
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	form.Questions = out
	return nil
}

func (b *Builder) optionQuestion(questionID string) (*models.FormQuestion, error) {
	form, err := b.activeForm()
	if err != nil {
		return nil, err
	}
	q, _ := form.Question(questionID)
	if q == nil || !q.Type.HasOptions() {
		return nil, nil
	}
	return q, nil
}

// AddOption appends "Option N" to the question's options.
func (b *Builder) AddOption(questionID string) error {
	q, err := b.optionQuestion(questionID)
	if err != nil || q == nil {
		return err
	}
	q.Options = append(q.Options, fmt.Sprintf("Option %d", len(q.Options)+1))
	return nil
}

func (b *Builder) UpdateOption(questionID string, index int, value string) error {
	q, err := b.optionQuestion(questionID)
	if err != nil || q == nil {
		return err
	}
	if index < 0 || index >= len(q.Options) {
		return fmt.Errorf("%w: option %d of %d", ErrIndexOutOfRange, index, len(q.Options))
	}
	q.Options[index] = value
	return nil
}

// DeleteOption removes an option. The last remaining option is never removed.
func (b *Builder) DeleteOption(questionID string, index int) error {
	q, err := b.optionQuestion(questionID)
	if err != nil || q == nil {
		return err
	}
	if len(q.Options) <= 1 {
		return nil
	}
	if index < 0 || index >= len(q.Options) {
		return fmt.Errorf("%w: option %d of %d", ErrIndexOutOfRange, index, len(q.Options))
	}
	q.Options = append(q.Options[:index], q.Options[index+1:]...)
	return nil
}

// UpdateFormMetadata patches the active form's title and description.
func (b *Builder) UpdateFormMetadata(patch MetadataPatch) error {
	form, err := b.activeForm()
	if err != nil {
		return err
	}
	if patch.FormTitle != nil {
		form.FormTitle = *patch.FormTitle
	}
	if patch.FormDescription != nil {
		form.FormDescription = *patch.FormDescription
	}
	return nil
}

// Ready reports whether universityKey's form has at least one question.
func (b *Builder) Ready(universityKey string) bool {
	return b.forms[universityKey].Ready()
}

// Readiness lists, per university, whether its form is ready.
type Readiness struct {
	Ready    bool            `json:"ready"`
	PerForm  map[string]bool `json:"perForm"`
	NotReady []string        `json:"notReady,omitempty"`
}

// FormsReady checks every university in order; all must be ready to advance.
func (b *Builder) FormsReady(universities []string) Readiness {
	r := Readiness{Ready: len(universities) > 0, PerForm: make(map[string]bool, len(universities))}
	for _, u := range universities {
		ok := b.Ready(u)
		r.PerForm[u] = ok
		if !ok {
			r.Ready = false
			r.NotReady = append(r.NotReady, u)
		}
	}
	return r
}
