// Package mastery contains the skill-mastery model: per-topic confidence,
// its level thresholds, the assessment and study-session update rules,
// read-time decay, the heatmap view and the recommendation ranking.
// This is a pure domain layer with zero external dependencies.
package mastery

import (
	"math"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

const domainName = "mastery"

// Record is a user's proficiency on one (subject, topic) pair.
// Exactly one record exists per (UserID, Subject, Topic).
type Record struct {
	UserID  shared.UserID
	Subject string
	Topic   string

	Level           Level
	Confidence      float64
	LastPracticedAt *time.Time
	AttemptCount    int

	// StudySeconds accumulates study-session time on the topic.
	StudySeconds int64

	// Version increases on every persisted update.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord creates the first-touch record: NotStarted, confidence 0.
func NewRecord(userID shared.UserID, key shared.TopicKey, now time.Time) Record {
	return Record{
		UserID:     userID,
		Subject:    key.Subject,
		Topic:      key.Topic,
		Level:      LevelNotStarted,
		Confidence: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Key returns the record's (subject, topic) pair.
func (r Record) Key() shared.TopicKey {
	return shared.TopicKey{Subject: r.Subject, Topic: r.Topic}
}

// IsMastered reports whether the record is at the top level.
func (r Record) IsMastered() bool {
	return r.Level == LevelMastered
}

// ═══════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ═══════════════════════════════════════════════════════════════════════════

// ValidateScore rejects scores outside [0,1] and NaN.
func ValidateScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return shared.ValidationError(domainName, "ValidateScore", "score must be between 0 and 1")
	}
	return nil
}

// ValidateDuration rejects non-positive study durations.
func ValidateDuration(durationSeconds int64) error {
	if durationSeconds <= 0 {
		return shared.ValidationError(domainName, "ValidateDuration", "duration_seconds must be positive")
	}
	return nil
}

// ApplyAssessment folds a score into the moving average, counts the attempt,
// marks the topic practiced at `at` and recomputes the level.
func (p Policy) ApplyAssessment(r Record, score float64, at time.Time) (Record, error) {
	if err := ValidateScore(score); err != nil {
		return r, err
	}

	r.Confidence = clamp01(r.Confidence*(1-p.AssessmentWeight) + score*p.AssessmentWeight)
	r.AttemptCount++
	r.touch(at)
	r.Level = p.LevelFor(r.Confidence)
	return r, nil
}

// ApplyStudySession nudges confidence up by a capped amount proportional to
// the session length. AttemptCount is left unchanged.
func (p Policy) ApplyStudySession(r Record, durationSeconds int64, at time.Time) (Record, error) {
	if err := ValidateDuration(durationSeconds); err != nil {
		return r, err
	}

	r.Confidence = clamp01(r.Confidence + p.StudyNudge(durationSeconds))
	r.StudySeconds += durationSeconds
	r.touch(at)
	r.Level = p.LevelFor(r.Confidence)
	return r, nil
}

// Decay returns the record as of now, with confidence reduced by DecayStep
// for each full DecayWindow elapsed since the last practice, once more than
// one window has passed. The input is not modified.
func (p Policy) Decay(r Record, now time.Time) Record {
	if r.LastPracticedAt == nil {
		return r
	}
	elapsed := now.Sub(*r.LastPracticedAt)
	if elapsed <= p.DecayWindow {
		return r
	}

	periods := int64(elapsed / p.DecayWindow)
	r.Confidence = clamp01(r.Confidence - float64(periods)*p.DecayStep)
	r.Level = p.LevelFor(r.Confidence)
	return r
}

// DecayAll applies Decay to every record.
func (p Policy) DecayAll(records []Record, now time.Time) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = p.Decay(r, now)
	}
	return out
}

// touch moves LastPracticedAt forward; an out-of-order event never makes
// the topic look staler than it is.
func (r *Record) touch(at time.Time) {
	if r.LastPracticedAt == nil || at.After(*r.LastPracticedAt) {
		t := at
		r.LastPracticedAt = &t
	}
}
