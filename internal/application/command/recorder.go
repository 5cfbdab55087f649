// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

var tracer = otel.Tracer("github.com/alem-hub/mastery-tracker/internal/application/command")

// ══════════════════════════════════════════════════════════════════════════════
// EVENT RECORDER
// Both write commands share one transactional path: lock or create the
// mastery record, apply the transition, append the study event, save.
// ══════════════════════════════════════════════════════════════════════════════

// RecorderConfig contains configuration shared by the write handlers.
type RecorderConfig struct {
	// Policy holds the mastery model constants.
	Policy mastery.Policy

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// NewID generates study event ids. Defaults to uuid.NewString.
	NewID func() string
}

// DefaultRecorderConfig returns default configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Policy: mastery.DefaultPolicy(),
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

func (c RecorderConfig) withDefaults() RecorderConfig {
	d := DefaultRecorderConfig()
	if c.Policy == (mastery.Policy{}) {
		c.Policy = d.Policy
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	if c.NewID == nil {
		c.NewID = d.NewID
	}
	return c
}

// RecordResult is returned by both write commands.
type RecordResult struct {
	// EventID is the id of the appended study event.
	EventID string

	// Record is the mastery record as committed.
	Record mastery.Record

	// PreviousLevel is the level before this event.
	PreviousLevel mastery.Level

	// LevelChanged is true when the event moved the topic to another level.
	LevelChanged bool

	// RecordedAt is when the write was committed.
	RecordedAt time.Time
}

type recorder struct {
	uow       mastery.UnitOfWork
	publisher shared.EventPublisher
	logger    *logger.Logger
	config    RecorderConfig
}

func newRecorder(uow mastery.UnitOfWork, publisher shared.EventPublisher, log *logger.Logger, config RecorderConfig) recorder {
	if log == nil {
		log = logger.Default()
	}
	return recorder{
		uow:       uow,
		publisher: publisher,
		logger:    log.With(logger.Component("event_recorder")),
		config:    config.withDefaults(),
	}
}

type transition func(rec mastery.Record) (mastery.Record, error)

// record runs the read-modify-write in one transaction. No retry is
// attempted; a storage failure leaves neither the event nor the update.
func (r recorder) record(ctx context.Context, op string, event activity.StudyEvent, apply transition) (*RecordResult, error) {
	ctx, span := tracer.Start(ctx, "command."+op, trace.WithAttributes(
		attribute.String("user.id", event.UserID.String()),
		attribute.String("mastery.subject", event.Subject),
		attribute.String("mastery.topic", event.Topic),
		attribute.String("event.kind", string(event.Kind)),
	))
	defer span.End()

	start := time.Now()
	now := event.RecordedAt
	result := &RecordResult{EventID: event.ID, RecordedAt: now}

	err := r.uow.WithinTx(ctx, func(ctx context.Context, tx mastery.Tx) error {
		current, err := tx.LockOrCreate(ctx, mastery.NewRecord(event.UserID, event.Key(), now))
		if err != nil {
			return err
		}
		result.PreviousLevel = current.Level

		next, err := apply(current)
		if err != nil {
			return err
		}
		next.UpdatedAt = now

		if err := tx.AppendEvent(ctx, event); err != nil {
			return err
		}

		saved, err := tx.Save(ctx, next)
		if err != nil {
			return err
		}
		result.Record = saved
		return nil
	})
	if err != nil {
		if !shared.IsValidation(err) {
			err = shared.StorageError("mastery", op, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("failed to record progress",
			logger.Operation(op),
			logger.UserID(event.UserID.String()),
			logger.Subject(event.Subject),
			logger.Topic(event.Topic),
			logger.Err(err),
		)
		return nil, err
	}

	result.LevelChanged = result.PreviousLevel != result.Record.Level
	span.SetAttributes(
		attribute.Float64("mastery.confidence", result.Record.Confidence),
		attribute.String("mastery.level", result.Record.Level.String()),
	)

	r.logger.Info("progress recorded",
		logger.Operation(op),
		logger.UserID(event.UserID.String()),
		logger.Subject(event.Subject),
		logger.Topic(event.Topic),
		logger.String("event_id", event.ID),
		logger.Float64("confidence", result.Record.Confidence),
		logger.String("level", result.Record.Level.String()),
		logger.Latency(time.Since(start)),
	)

	r.publish(ctx, event, result)
	return result, nil
}

// publish notifies subscribers after commit. Failures are logged only;
// the committed write stands.
func (r recorder) publish(ctx context.Context, event activity.StudyEvent, result *RecordResult) {
	if r.publisher == nil {
		return
	}

	eventType := shared.EventAssessmentRecorded
	if event.Kind == activity.KindStudySession {
		eventType = shared.EventStudySessionRecorded
	}

	events := []shared.Event{
		shared.ProgressRecordedEvent{
			BaseEvent:  shared.NewBaseEvent(eventType, event.UserID.String(), result.RecordedAt),
			EventID:    event.ID,
			Subject:    event.Subject,
			Topic:      event.Topic,
			Confidence: result.Record.Confidence,
			Level:      result.Record.Level.String(),
		},
	}
	if result.LevelChanged {
		events = append(events, shared.LevelChangedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventLevelChanged, event.UserID.String(), result.RecordedAt),
			Subject:   event.Subject,
			Topic:     event.Topic,
			OldLevel:  result.PreviousLevel.String(),
			NewLevel:  result.Record.Level.String(),
		})
	}

	for _, e := range events {
		if err := r.publisher.Publish(ctx, e); err != nil {
			r.logger.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.UserID(event.UserID.String()),
				logger.Err(err),
			)
		}
	}
}

// parseTarget validates the identity and topic shared by every command.
func parseTarget(userID, subject, topic string) (shared.UserID, shared.TopicKey, error) {
	uid, err := shared.NewUserID(userID)
	if err != nil {
		return "", shared.TopicKey{}, err
	}
	key, err := shared.NewTopicKey(subject, topic)
	if err != nil {
		return "", shared.TopicKey{}, err
	}
	return uid, key, nil
}
