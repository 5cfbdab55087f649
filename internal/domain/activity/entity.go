// Package activity contains the append-only study event log and the
// analytics computed from it: streaks and time-windowed statistics.
// This is a pure domain layer with zero external dependencies.
package activity

import (
	"fmt"
	"math"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

const domainName = "activity"

// MaxFutureSkew is how far past the recording time an event may be dated.
const MaxFutureSkew = 24 * time.Hour

// EarliestOccurredAt is the oldest accepted event time.
var EarliestOccurredAt = time.Unix(0, 0).UTC()

// Kind distinguishes assessments from study sessions.
type Kind string

const (
	KindAssessment   Kind = "assessment"
	KindStudySession Kind = "study_session"
)

// IsValid checks if the kind is known.
func (k Kind) IsValid() bool {
	return k == KindAssessment || k == KindStudySession
}

// StudyEvent is one immutable entry of a user's study log.
// Score is set only for assessments, DurationSeconds only for sessions.
type StudyEvent struct {
	ID              string
	UserID          shared.UserID
	Subject         string
	Topic           string
	Kind            Kind
	Score           *float64
	DurationSeconds int64
	OccurredAt      time.Time
	RecordedAt      time.Time
}

// Key returns the event's (subject, topic) pair.
func (e StudyEvent) Key() shared.TopicKey {
	return shared.TopicKey{Subject: e.Subject, Topic: e.Topic}
}

// IsAssessment reports whether the event carries a score.
func (e StudyEvent) IsAssessment() bool {
	return e.Kind == KindAssessment
}

// NewAssessmentEvent builds a validated assessment event.
func NewAssessmentEvent(id string, userID shared.UserID, key shared.TopicKey, score float64, occurredAt, recordedAt time.Time) (StudyEvent, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return StudyEvent{}, shared.ValidationError(domainName, "NewAssessmentEvent", "score must be between 0 and 1")
	}
	s := score
	return newEvent(id, userID, key, KindAssessment, &s, 0, occurredAt, recordedAt)
}

// NewStudySessionEvent builds a validated study session event.
func NewStudySessionEvent(id string, userID shared.UserID, key shared.TopicKey, durationSeconds int64, occurredAt, recordedAt time.Time) (StudyEvent, error) {
	if durationSeconds <= 0 {
		return StudyEvent{}, shared.ValidationError(domainName, "NewStudySessionEvent", "duration_seconds must be positive")
	}
	return newEvent(id, userID, key, KindStudySession, nil, durationSeconds, occurredAt, recordedAt)
}

func newEvent(id string, userID shared.UserID, key shared.TopicKey, kind Kind, score *float64, duration int64, occurredAt, recordedAt time.Time) (StudyEvent, error) {
	if id == "" {
		return StudyEvent{}, shared.ValidationError(domainName, "NewEvent", "event id is required")
	}
	if !userID.IsValid() {
		return StudyEvent{}, shared.ValidationError(domainName, "NewEvent", "user id is required")
	}
	if key.Topic == "" {
		return StudyEvent{}, shared.ValidationError(domainName, "NewEvent", fmt.Sprintf("topic is required (subject %q)", key.Subject))
	}
	if occurredAt.IsZero() {
		occurredAt = recordedAt
	}
	if occurredAt.Before(EarliestOccurredAt) {
		return StudyEvent{}, shared.ValidationError(domainName, "NewEvent", "occurred_at must not be before 1970-01-01")
	}
	if occurredAt.After(recordedAt.Add(MaxFutureSkew)) {
		return StudyEvent{}, shared.ValidationError(domainName, "NewEvent", "occurred_at is too far in the future")
	}
	return StudyEvent{
		ID:              id,
		UserID:          userID,
		Subject:         key.Subject,
		Topic:           key.Topic,
		Kind:            kind,
		Score:           score,
		DurationSeconds: duration,
		OccurredAt:      occurredAt.UTC(),
		RecordedAt:      recordedAt.UTC(),
	}, nil
}
