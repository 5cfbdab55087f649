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
// RECORD STUDY SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RecordStudySessionCommand contains the data to record a study session.
type RecordStudySessionCommand struct {
	UserID  string
	Subject string
	Topic   string

	// DurationSeconds must be positive.
	DurationSeconds int64

	// OccurredAt is when the session happened (defaults to now if zero).
	OccurredAt time.Time
}

// Validate validates the command.
func (c RecordStudySessionCommand) Validate() error {
	if _, _, err := parseTarget(c.UserID, c.Subject, c.Topic); err != nil {
		return err
	}
	return mastery.ValidateDuration(c.DurationSeconds)
}

// RecordStudySessionHandler handles the RecordStudySessionCommand.
type RecordStudySessionHandler struct {
	recorder recorder
}

// NewRecordStudySessionHandler creates a new RecordStudySessionHandler.
func NewRecordStudySessionHandler(
	uow mastery.UnitOfWork,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config RecorderConfig,
) *RecordStudySessionHandler {
	return &RecordStudySessionHandler{recorder: newRecorder(uow, publisher, log, config)}
}

// Handle executes the record study session command.
func (h *RecordStudySessionHandler) Handle(ctx context.Context, cmd RecordStudySessionCommand) (*RecordResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	userID, key, _ := parseTarget(cmd.UserID, cmd.Subject, cmd.Topic)

	cfg := h.recorder.config
	now := cfg.Now().UTC()

	event, err := activity.NewStudySessionEvent(cfg.NewID(), userID, key, cmd.DurationSeconds, cmd.OccurredAt, now)
	if err != nil {
		return nil, err
	}

	return h.recorder.record(ctx, "RecordStudySession", event, func(rec mastery.Record) (mastery.Record, error) {
		return cfg.Policy.ApplyStudySession(rec, cmd.DurationSeconds, event.OccurredAt)
	})
}
