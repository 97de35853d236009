package wizard

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	apperrors "visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
	"visa-portal/internal/models"
	"visa-portal/internal/progress"
)

const eventNext = "next"

func backEvent(step models.Step) string {
	return "back-to-" + string(step)
}

// StepRecorder receives one record per step entry. observability.Observability
// implements it.
type StepRecorder interface {
	RecordStepEntered(ctx context.Context, step string)
}

// Sequence is the linear step machine of one session. Forward moves go one step
// at a time; any earlier step can be re-entered. Every entry saves progress.
type Sequence struct {
	machine  *fsm.FSM
	tracker  *progress.Tracker
	recorder StepRecorder
	logger   logger.Logger
}

func newStepEvents() fsm.Events {
	events := make(fsm.Events, 0, 2*len(models.Steps))
	for i := 0; i+1 < len(models.Steps); i++ {
		events = append(events, fsm.EventDesc{
			Name: eventNext,
			Src:  []string{string(models.Steps[i])},
			Dst:  string(models.Steps[i+1]),
		})
	}
	// completed is terminal: nothing leads back out of it.
	for i, step := range models.TrackedSteps {
		later := make([]string, 0, len(models.TrackedSteps))
		for _, s := range models.TrackedSteps[i+1:] {
			later = append(later, string(s))
		}
		if len(later) == 0 {
			continue
		}
		events = append(events, fsm.EventDesc{Name: backEvent(step), Src: later, Dst: string(step)})
	}
	return events
}

// NewSequence resumes from the tracker's current step, or starts at apply-visa.
func NewSequence(ctx context.Context, tracker *progress.Tracker, recorder StepRecorder, log logger.Logger) *Sequence {
	initial := models.StepApplyVisa
	if record := tracker.GetProgress(ctx); record != nil {
		initial = record.CurrentStep
	}

	s := &Sequence{
		tracker:  tracker,
		recorder: recorder,
		logger:   log.WithFields(map[string]interface{}{"component": "sequence"}),
	}
	s.machine = fsm.NewFSM(string(initial), newStepEvents(), fsm.Callbacks{
		"enter_state": func(ctx context.Context, e *fsm.Event) {
			s.entered(ctx, models.Step(e.Dst), eventData(e.Args))
		},
	})
	return s
}

func (s *Sequence) Current() models.Step {
	return models.Step(s.machine.Current())
}

// Enter moves to step and records it. Re-entering the current step only refreshes
// progress and merges data. Skipping ahead is a STEP_TRANSITION_INVALID error.
func (s *Sequence) Enter(ctx context.Context, step models.Step, data map[string]interface{}) error {
	if !step.Valid() {
		return apperrors.NewValidationError("unknown wizard step: " + string(step))
	}
	current := s.Current()
	if step == current {
		s.entered(ctx, step, data)
		return nil
	}

	event := eventNext
	if step.Index() < current.Index() {
		event = backEvent(step)
	} else if next, ok := current.Next(); !ok || next != step {
		return apperrors.NewStepTransitionError(string(current), string(step))
	}

	if err := s.machine.Event(ctx, event, data); err != nil {
		var invalid fsm.InvalidEventError
		var unknown fsm.UnknownEventError
		if errors.As(err, &invalid) || errors.As(err, &unknown) {
			return apperrors.NewStepTransitionError(string(current), string(step))
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *Sequence) entered(ctx context.Context, step models.Step, data map[string]interface{}) {
	s.tracker.SaveProgress(ctx, step, data)
	metrics.WizardStepTransitions.WithLabelValues(string(step)).Inc()
	if s.recorder != nil {
		s.recorder.RecordStepEntered(ctx, string(step))
	}
	s.logger.Debug("step entered", map[string]interface{}{"step": string(step)})
}

func eventData(args []interface{}) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	data, _ := args[0].(map[string]interface{})
	return data
}
