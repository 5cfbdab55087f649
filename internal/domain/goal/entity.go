// Package goal contains user-declared learning goals. Goals are an input to
// recommendation ranking and never mutate mastery records.
package goal

import (
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

const domainName = "goal"

// LearningGoal is a target level a user wants to reach on a topic.
type LearningGoal struct {
	ID          string
	UserID      shared.UserID
	Subject     string
	Topic       string
	TargetLevel mastery.Level
	IsActive    bool
	CreatedAt   time.Time
	// DeactivatedAt is set once IsActive goes false.
	DeactivatedAt *time.Time
}

// Key returns the goal's (subject, topic) pair.
func (g LearningGoal) Key() shared.TopicKey {
	return shared.TopicKey{Subject: g.Subject, Topic: g.Topic}
}

// New builds an active goal. An empty target defaults to mastered;
// not_started is rejected since it is not something to aim for.
func New(id string, userID shared.UserID, key shared.TopicKey, target mastery.Level, now time.Time) (LearningGoal, error) {
	if id == "" {
		return LearningGoal{}, shared.ValidationError(domainName, "New", "goal id is required")
	}
	if !userID.IsValid() {
		return LearningGoal{}, shared.ValidationError(domainName, "New", "user id is required")
	}
	if target == "" {
		target = mastery.LevelMastered
	}
	if !target.IsValid() || target == mastery.LevelNotStarted {
		return LearningGoal{}, shared.ValidationError(domainName, "New", "target level must be learning, practicing or mastered")
	}
	return LearningGoal{
		ID:          id,
		UserID:      userID,
		Subject:     key.Subject,
		Topic:       key.Topic,
		TargetLevel: target,
		IsActive:    true,
		CreatedAt:   now.UTC(),
	}, nil
}

// Deactivate marks the goal inactive. Deactivating twice is a no-op.
func (g *LearningGoal) Deactivate(now time.Time) {
	if !g.IsActive {
		return
	}
	g.IsActive = false
	t := now.UTC()
	g.DeactivatedAt = &t
}

// ReachedBy reports whether the given level satisfies the goal.
func (g LearningGoal) ReachedBy(level mastery.Level) bool {
	return level.AtLeast(g.TargetLevel)
}

// ActiveKeys returns the topic keys of the active goals.
func ActiveKeys(goals []LearningGoal) []shared.TopicKey {
	keys := make([]shared.TopicKey, 0, len(goals))
	for _, g := range goals {
		if g.IsActive {
			keys = append(keys, g.Key())
		}
	}
	return keys
}
