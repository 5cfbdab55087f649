package command

import (
	"context"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ASSESSMENT COMMAND
// Folds an assessment score into the topic's confidence and appends the
// assessment to the study log, atomically.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAssessmentCommand contains the data to record an assessment.
type RecordAssessmentCommand struct {
	// UserID is the authenticated owner.
	UserID string

	// Subject defaults to "General" when empty.
	Subject string

	// Topic is required.
	Topic string

	// Score must be within [0, 1].
	Score float64

	// OccurredAt is when the assessment happened (defaults to now if zero).
	OccurredAt time.Time
}

// Validate validates the command.
func (c RecordAssessmentCommand) Validate() error {
	if _, _, err := parseTarget(c.UserID, c.Subject, c.Topic); err != nil {
		return err
	}
	return mastery.ValidateScore(c.Score)
}

// RecordAssessmentHandler handles the RecordAssessmentCommand.
type RecordAssessmentHandler struct {
	recorder recorder
}

// NewRecordAssessmentHandler creates a new RecordAssessmentHandler.
func NewRecordAssessmentHandler(
	uow mastery.UnitOfWork,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config RecorderConfig,
) *RecordAssessmentHandler {
	return &RecordAssessmentHandler{recorder: newRecorder(uow, publisher, log, config)}
}

// Handle executes the record assessment command.
func (h *RecordAssessmentHandler) Handle(ctx context.Context, cmd RecordAssessmentCommand) (*RecordResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	userID, key, _ := parseTarget(cmd.UserID, cmd.Subject, cmd.Topic)

	cfg := h.recorder.config
	now := cfg.Now().UTC()

	event, err := activity.NewAssessmentEvent(cfg.NewID(), userID, key, cmd.Score, cmd.OccurredAt, now)
	if err != nil {
		return nil, err
	}

	return h.recorder.record(ctx, "RecordAssessment", event, func(rec mastery.Record) (mastery.Record, error) {
		return cfg.Policy.ApplyAssessment(rec, cmd.Score, event.OccurredAt)
	})
}
