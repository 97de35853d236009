// Package progress records how far a session has come through the student
// application wizard so it can be resumed.
package progress

import (
	"context"
	"math"
	"time"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/models"
	"visa-portal/internal/storage"
)

// Repository is the persisted key-value view the tracker writes through.
// storage.Session implements it.
type Repository interface {
	Load(ctx context.Context, key string, out interface{}) bool
	Save(ctx context.Context, key string, value interface{}) error
	Clear(ctx context.Context, keys ...string) error
}

type Tracker struct {
	repo   Repository
	logger logger.Logger
	now    func() time.Time
}

func NewTracker(repo Repository, log logger.Logger) *Tracker {
	return &Tracker{
		repo:   repo,
		logger: log.WithFields(map[string]interface{}{"component": "progress"}),
		now:    time.Now,
	}
}

// SaveProgress marks step as current and reached, and shallow-merges data into the
// record. Write failures are logged, never returned.
func (t *Tracker) SaveProgress(ctx context.Context, step models.Step, data map[string]interface{}) {
	if !step.Valid() {
		t.logger.Warn("ignoring progress for unknown step", map[string]interface{}{"step": string(step)})
		return
	}

	record := t.GetProgress(ctx)
	if record == nil {
		record = &models.ApplicationProgress{
			CurrentStep:     models.StepApplyVisa,
			CompletedSteps:  []models.Step{},
			ApplicationData: map[string]interface{}{},
		}
	}

	record.CurrentStep = step
	if !record.HasCompleted(step) {
		record.CompletedSteps = append(record.CompletedSteps, step)
	}
	if record.ApplicationData == nil {
		record.ApplicationData = map[string]interface{}{}
	}
	for k, v := range data {
		record.ApplicationData[k] = v
	}
	record.LastUpdated = t.now().UTC()

	if err := t.repo.Save(ctx, storage.KeyApplicationProgress, record); err != nil {
		t.logger.Error("failed to persist progress", map[string]interface{}{
			"step":  string(step),
			"error": err.Error(),
		})
		return
	}
	t.logger.Debug("progress saved", map[string]interface{}{
		"step":           string(step),
		"completedSteps": len(record.CompletedSteps),
	})
}

// GetProgress returns the stored record, or nil when it is missing or unusable.
func (t *Tracker) GetProgress(ctx context.Context) *models.ApplicationProgress {
	var record models.ApplicationProgress
	if !t.repo.Load(ctx, storage.KeyApplicationProgress, &record) {
		return nil
	}
	if !record.CurrentStep.Valid() {
		t.logger.Warn("stored progress has unknown step", map[string]interface{}{"step": string(record.CurrentStep)})
		return nil
	}

	// collapse anything a foreign writer may have duplicated
	seen := make(map[models.Step]bool, len(record.CompletedSteps))
	steps := make([]models.Step, 0, len(record.CompletedSteps))
	for _, s := range record.CompletedSteps {
		if !seen[s] {
			seen[s] = true
			steps = append(steps, s)
		}
	}
	record.CompletedSteps = steps
	return &record
}

// ClearProgress deletes the record.
func (t *Tracker) ClearProgress(ctx context.Context) {
	if err := t.repo.Clear(ctx, storage.KeyApplicationProgress); err != nil {
		t.logger.Error("failed to clear progress", map[string]interface{}{"error": err.Error()})
	}
}

// HasActiveApplication reports whether a record exists and is not completed.
func (t *Tracker) HasActiveApplication(ctx context.Context) bool {
	record := t.GetProgress(ctx)
	return record != nil && record.CurrentStep != models.StepCompleted
}

// CurrentStepRoute returns the wizard route to resume at.
func (t *Tracker) CurrentStepRoute(ctx context.Context) string {
	record := t.GetProgress(ctx)
	if record == nil {
		return StepRoute(models.StepApplyVisa)
	}
	return StepRoute(record.CurrentStep)
}

// ProgressPercentage is the share of tracked steps reached, rounded.
func (t *Tracker) ProgressPercentage(ctx context.Context) int {
	return Percentage(t.GetProgress(ctx))
}

// Percentage computes the completion share of record; nil is 0.
func Percentage(record *models.ApplicationProgress) int {
	if record == nil {
		return 0
	}
	done := 0
	for _, s := range models.TrackedSteps {
		if record.HasCompleted(s) {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(models.TrackedSteps))))
}

// Summary is what the student dashboard needs to offer Continue or Start New.
type Summary struct {
	HasActiveApplication bool          `json:"hasActiveApplication"`
	CurrentStep          models.Step   `json:"currentStep,omitempty"`
	DisplayName          string        `json:"displayName,omitempty"`
	Route                string        `json:"route"`
	Percentage           int           `json:"percentage"`
	CompletedSteps       []models.Step `json:"completedSteps"`
	LastUpdated          *time.Time    `json:"lastUpdated,omitempty"`
}

// Summary reads the record once and derives the dashboard view from it.
func (t *Tracker) Summary(ctx context.Context) Summary {
	record := t.GetProgress(ctx)
	if record == nil {
		return Summary{Route: StepRoute(models.StepApplyVisa), CompletedSteps: []models.Step{}}
	}
	updated := record.LastUpdated
	return Summary{
		HasActiveApplication: record.CurrentStep != models.StepCompleted,
		CurrentStep:          record.CurrentStep,
		DisplayName:          StepDisplayName(record.CurrentStep),
		Route:                StepRoute(record.CurrentStep),
		Percentage:           Percentage(record),
		CompletedSteps:       record.CompletedSteps,
		LastUpdated:          &updated,
	}
}
