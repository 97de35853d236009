package formbuilder

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visa-portal/internal/models"
)

// ==========================
// Test Helpers
// ==========================

func newTestBuilder(t *testing.T, university string) *Builder {
	t.Helper()
	b := New()
	n := 0
	b.newID = func() string {
		n++
		return fmt.Sprintf("q%d", n)
	}
	b.SelectUniversity(university)
	return b
}

func ids(form *models.FormModel) []string {
	out := make([]string, len(form.Questions))
	for i, q := range form.Questions {
		out[i] = q.ID
	}
	return out
}

func strPtr(s string) *string { return &s }

// ==========================
// Forms
// ==========================

func TestInitializeForm_DoesNotOverwrite(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	form := b.ActiveForm()
	require.NotNil(t, form)
	assert.Equal(t, "MIT Application Form", form.FormTitle)
	assert.NotEmpty(t, form.FormDescription)
	assert.Empty(t, form.Questions)

	_, err := b.AddQuestion(models.QuestionShortAnswer)
	require.NoError(t, err)

	b.InitializeForm("MIT")
	assert.Len(t, b.ActiveForm().Questions, 1)
}

func TestSelectUniversity_SwapsWholeModel(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, err := b.AddQuestion(models.QuestionDate)
	require.NoError(t, err)
	assert.Equal(t, "q1", b.SelectedQuestion())

	b.SelectUniversity("Stanford")
	assert.Empty(t, b.ActiveForm().Questions)
	assert.Empty(t, b.SelectedQuestion())
	assert.Equal(t, "Stanford Application Form", b.ActiveForm().FormTitle)

	b.SelectUniversity("MIT")
	assert.Len(t, b.ActiveForm().Questions, 1)
}

func TestOperations_WithoutActiveForm(t *testing.T) {
	b := New()
	_, err := b.AddQuestion(models.QuestionParagraph)
	assert.ErrorIs(t, err, ErrNoActiveForm)
	assert.ErrorIs(t, b.UpdateFormMetadata(MetadataPatch{}), ErrNoActiveForm)
}

// ==========================
// Questions
// ==========================

func TestAddQuestion_Defaults(t *testing.T) {
	for _, qt := range models.QuestionTypes {
		t.Run(string(qt), func(t *testing.T) {
			b := newTestBuilder(t, "MIT")
			q, err := b.AddQuestion(qt)
			require.NoError(t, err)

			assert.Equal(t, "q1", q.ID)
			assert.Equal(t, qt, q.Type)
			assert.Empty(t, q.Title)
			assert.False(t, q.Required)
			if qt.HasOptions() {
				assert.Equal(t, []string{"Option 1"}, q.Options)
			} else {
				assert.Nil(t, q.Options)
			}
			assert.Equal(t, q.ID, b.SelectedQuestion())
		})
	}
}

func TestAddQuestion_AppendsAtEnd(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	for i := 0; i < 3; i++ {
		_, err := b.AddQuestion(models.QuestionShortAnswer)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"q1", "q2", "q3"}, ids(b.ActiveForm()))
}

func TestAddQuestion_UnsupportedType(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, err := b.AddQuestion("signature")
	assert.ErrorIs(t, err, models.ErrUnsupportedQuestionType)
	assert.Empty(t, b.ActiveForm().Questions)
}

func TestUpdateQuestion(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, err := b.AddQuestion(models.QuestionShortAnswer)
	require.NoError(t, err)

	required := true
	require.NoError(t, b.UpdateQuestion("q1", QuestionPatch{
		Title:       strPtr("Passport number"),
		Placeholder: strPtr("A1234567"),
		Required:    &required,
	}))

	q, _ := b.ActiveForm().Question("q1")
	assert.Equal(t, "Passport number", q.Title)
	assert.Equal(t, "A1234567", q.Placeholder)
	assert.True(t, q.Required)
	assert.Equal(t, "q1", q.ID)

	// unknown id is a no-op
	assert.NoError(t, b.UpdateQuestion("nope", QuestionPatch{Title: strPtr("x")}))
}

func TestUpdateQuestion_TypeChangeNormalizesOptions(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, err := b.AddQuestion(models.QuestionShortAnswer)
	require.NoError(t, err)
	require.NoError(t, b.UpdateQuestion("q1", QuestionPatch{Placeholder: strPtr("hint")}))

	dropdown := models.QuestionDropdown
	require.NoError(t, b.UpdateQuestion("q1", QuestionPatch{Type: &dropdown}))
	q, _ := b.ActiveForm().Question("q1")
	assert.Equal(t, []string{"Option 1"}, q.Options)
	assert.Empty(t, q.Placeholder)

	date := models.QuestionDate
	require.NoError(t, b.UpdateQuestion("q1", QuestionPatch{Type: &date}))
	q, _ = b.ActiveForm().Question("q1")
	assert.Nil(t, q.Options)

	bogus := models.QuestionType("signature")
	assert.ErrorIs(t, b.UpdateQuestion("q1", QuestionPatch{Type: &bogus}), models.ErrUnsupportedQuestionType)
}

func TestDeleteQuestion_ClearsSelection(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, _ = b.AddQuestion(models.QuestionShortAnswer)
	_, _ = b.AddQuestion(models.QuestionParagraph)

	b.SelectQuestion("q1")
	require.NoError(t, b.DeleteQuestion("q2"))
	assert.Equal(t, "q1", b.SelectedQuestion())

	require.NoError(t, b.DeleteQuestion("q1"))
	assert.Empty(t, b.SelectedQuestion())
	assert.Empty(t, b.ActiveForm().Questions)
}

func TestDuplicateQuestion_InsertsAfterSource(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, _ = b.AddQuestion(models.QuestionCheckboxes)
	_, _ = b.AddQuestion(models.QuestionDate)
	require.NoError(t, b.UpdateQuestion("q1", QuestionPatch{Title: strPtr("Documents"), Options: []string{"Passport", "CV"}}))

	dup, err := b.DuplicateQuestion("q1")
	require.NoError(t, err)
	require.NotNil(t, dup)

	assert.Equal(t, []string{"q1", "q3", "q2"}, ids(b.ActiveForm()))
	assert.Equal(t, "Documents (Copy)", dup.Title)
	assert.Equal(t, []string{"Passport", "CV"}, dup.Options)

	// the copy does not share options with the source
	require.NoError(t, b.UpdateOption("q3", 0, "Visa"))
	src, _ := b.ActiveForm().Question("q1")
	assert.Equal(t, "Passport", src.Options[0])

	missing, err := b.DuplicateQuestion("nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMoveQuestion_StableMove(t *testing.T) {
	tests := []struct {
		from, to int
		want     []string
	}{
		{0, 3, []string{"q2", "q3", "q4", "q1"}},
		{3, 0, []string{"q4", "q1", "q2", "q3"}},
		{1, 2, []string{"q1", "q3", "q2", "q4"}},
		{2, 2, []string{"q1", "q2", "q3", "q4"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d->%d", tt.from, tt.to), func(t *testing.T) {
			b := newTestBuilder(t, "MIT")
			for i := 0; i < 4; i++ {
				_, _ = b.AddQuestion(models.QuestionShortAnswer)
			}

			require.NoError(t, b.MoveQuestion(tt.from, tt.to))
			got := ids(b.ActiveForm())
			assert.Equal(t, tt.want, got)
			assert.ElementsMatch(t, []string{"q1", "q2", "q3", "q4"}, got)
			assert.Equal(t, fmt.Sprintf("q%d", tt.from+1), got[tt.to])
		})
	}
}

func TestMoveQuestion_OutOfRange(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, _ = b.AddQuestion(models.QuestionShortAnswer)
	assert.ErrorIs(t, b.MoveQuestion(0, 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, b.MoveQuestion(-1, 0), ErrIndexOutOfRange)
}

// ==========================
// Options
// ==========================

func TestOptionCRUD(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, _ = b.AddQuestion(models.QuestionMultipleChoice)

	require.NoError(t, b.AddOption("q1"))
	require.NoError(t, b.AddOption("q1"))
	q, _ := b.ActiveForm().Question("q1")
	assert.Equal(t, []string{"Option 1", "Option 2", "Option 3"}, q.Options)

	require.NoError(t, b.UpdateOption("q1", 1, "Fall"))
	require.NoError(t, b.UpdateOption("q1", 2, "Fall")) // duplicates are allowed
	assert.ErrorIs(t, b.UpdateOption("q1", 5, "x"), ErrIndexOutOfRange)

	require.NoError(t, b.DeleteOption("q1", 0))
	q, _ = b.ActiveForm().Question("q1")
	assert.Equal(t, []string{"Fall", "Fall"}, q.Options)
}

func TestDeleteOption_KeepsLastOption(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, _ = b.AddQuestion(models.QuestionDropdown)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.DeleteOption("q1", 0))
		q, _ := b.ActiveForm().Question("q1")
		assert.Equal(t, []string{"Option 1"}, q.Options)
	}
}

func TestOptionOps_IgnoreNonOptionQuestions(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, _ = b.AddQuestion(models.QuestionParagraph)

	require.NoError(t, b.AddOption("q1"))
	q, _ := b.ActiveForm().Question("q1")
	assert.Nil(t, q.Options)
}

// ==========================
// Metadata & readiness
// ==========================

func TestUpdateFormMetadata_ActiveOnly(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	b.InitializeForm("Stanford")

	require.NoError(t, b.UpdateFormMetadata(MetadataPatch{FormTitle: strPtr("Graduate intake")}))
	assert.Equal(t, "Graduate intake", b.ActiveForm().FormTitle)
	assert.Equal(t, defaultDescription, b.ActiveForm().FormDescription)
	assert.Equal(t, "Stanford Application Form", b.Form("Stanford").FormTitle)
}

func TestFormsReady(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, _ = b.AddQuestion(models.QuestionShortAnswer)
	b.SelectUniversity("Stanford")

	r := b.FormsReady([]string{"MIT", "Stanford", "Oxford"})
	assert.False(t, r.Ready)
	assert.Equal(t, []string{"Stanford", "Oxford"}, r.NotReady)
	assert.True(t, r.PerForm["MIT"])

	_, _ = b.AddQuestion(models.QuestionDate)
	assert.True(t, b.FormsReady([]string{"MIT", "Stanford"}).Ready)
	assert.False(t, b.FormsReady(nil).Ready)
}

func TestDraft_RoundTrip(t *testing.T) {
	b := newTestBuilder(t, "MIT")
	_, _ = b.AddQuestion(models.QuestionCheckboxes)

	restored := FromDraft(b.Draft())
	assert.Equal(t, "MIT", restored.ActiveUniversity())
	assert.Equal(t, "q1", restored.SelectedQuestion())
	assert.Equal(t, b.ActiveForm(), restored.ActiveForm())

	// edits to the restored builder do not leak back
	require.NoError(t, restored.AddOption("q1"))
	q, _ := b.ActiveForm().Question("q1")
	assert.Len(t, q.Options, 1)

	assert.Nil(t, FromDraft(nil).ActiveForm())
}
