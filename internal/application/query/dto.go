package query

import (
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
)

// MasteryDTO is a mastery record as seen by readers, decayed as of the query.
type MasteryDTO struct {
	Subject         string        `json:"subject"`
	Topic           string        `json:"topic"`
	Level           mastery.Level `json:"level"`
	Confidence      float64       `json:"confidence"`
	AttemptCount    int           `json:"attempt_count"`
	StudySeconds    int64         `json:"study_seconds"`
	LastPracticedAt *time.Time    `json:"last_practiced_at,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewMasteryDTO converts a record.
func NewMasteryDTO(r mastery.Record) MasteryDTO {
	return MasteryDTO{
		Subject:         r.Subject,
		Topic:           r.Topic,
		Level:           r.Level,
		Confidence:      r.Confidence,
		AttemptCount:    r.AttemptCount,
		StudySeconds:    r.StudySeconds,
		LastPracticedAt: r.LastPracticedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// StudyEventDTO is one study log entry.
type StudyEventDTO struct {
	ID              string        `json:"id"`
	Subject         string        `json:"subject"`
	Topic           string        `json:"topic"`
	Kind            activity.Kind `json:"kind"`
	Score           *float64      `json:"score,omitempty"`
	DurationSeconds int64         `json:"duration_seconds,omitempty"`
	OccurredAt      time.Time     `json:"occurred_at"`
	RecordedAt      time.Time     `json:"recorded_at"`
}

// NewStudyEventDTOs converts events, keeping order.
func NewStudyEventDTOs(events []activity.StudyEvent) []StudyEventDTO {
	out := make([]StudyEventDTO, len(events))
	for i, e := range events {
		out[i] = StudyEventDTO{
			ID:              e.ID,
			Subject:         e.Subject,
			Topic:           e.Topic,
			Kind:            e.Kind,
			Score:           e.Score,
			DurationSeconds: e.DurationSeconds,
			OccurredAt:      e.OccurredAt,
			RecordedAt:      e.RecordedAt,
		}
	}
	return out
}

// GoalDTO is a learning goal with the topic's current decayed level.
type GoalDTO struct {
	ID            string        `json:"id"`
	Subject       string        `json:"subject"`
	Topic         string        `json:"topic"`
	TargetLevel   mastery.Level `json:"target_level"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
	DeactivatedAt *time.Time    `json:"deactivated_at,omitempty"`

	CurrentLevel mastery.Level `json:"current_level"`
	Reached      bool          `json:"reached"`
}

// NewGoalDTO converts a goal given the topic's current level.
func NewGoalDTO(g goal.LearningGoal, current mastery.Level) GoalDTO {
	if current == "" {
		current = mastery.LevelNotStarted
	}
	return GoalDTO{
		ID:            g.ID,
		Subject:       g.Subject,
		Topic:         g.Topic,
		TargetLevel:   g.TargetLevel,
		IsActive:      g.IsActive,
		CreatedAt:     g.CreatedAt,
		DeactivatedAt: g.DeactivatedAt,
		CurrentLevel:  current,
		Reached:       g.ReachedBy(current),
	}
}
