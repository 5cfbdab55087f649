package mastery

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// Weights tune the recommendation priority
// w1*(1-confidence) + w2*recency + w3*goalBoost.
type Weights struct {
	Confidence float64 `toml:"confidence"`
	Recency    float64 `toml:"recency"`
	Goal       float64 `toml:"goal"`
}

// DefaultWeights returns w1=0.5, w2=0.3, w3=0.2.
func DefaultWeights() Weights {
	return Weights{Confidence: 0.5, Recency: 0.3, Goal: 0.2}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"confidence": w.Confidence, "recency": w.Recency, "goal": w.Goal} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("ranking weight %s must be a non-negative number, got %v", name, v)
		}
	}
	if w.Confidence+w.Recency+w.Goal == 0 {
		return errors.New("ranking weights must not all be zero")
	}
	return nil
}

// Reason explains the dominant term of a recommendation's priority.
type Reason string

const (
	ReasonActiveGoal    Reason = "active_goal"
	ReasonGoingStale    Reason = "going_stale"
	ReasonNotStarted    Reason = "not_started"
	ReasonLowConfidence Reason = "low_confidence"
)

// Recommendation is one ranked topic.
type Recommendation struct {
	Subject    string  `json:"subject"`
	Topic      string  `json:"topic"`
	Reason     Reason  `json:"reason"`
	Priority   float64 `json:"priority"`
	Level      Level   `json:"level"`
	Confidence float64 `json:"confidence"`
	HasGoal    bool    `json:"has_goal"`
}

// RecencyWindow is the idle period at which the recency term saturates.
const RecencyWindow = 30 * 24 * time.Hour

// RecencyWeight returns min(1, daysSinceLastPracticed/30). A topic never
// practiced counts as fully stale.
func RecencyWeight(lastPracticedAt *time.Time, now time.Time) float64 {
	if lastPracticedAt == nil {
		return 1
	}
	elapsed := now.Sub(*lastPracticedAt)
	if elapsed <= 0 {
		return 0
	}
	return math.Min(1, float64(elapsed)/float64(RecencyWindow))
}

// Rank scores every non-mastered record plus every active goal topic that
// has no record, and returns at most limit recommendations ordered by
// priority desc, then subject asc, then topic asc. Records are used as
// given; callers apply Decay first when they want read-time staleness.
func Rank(records []Record, activeGoals []shared.TopicKey, now time.Time, w Weights, limit int) []Recommendation {
	if limit <= 0 {
		return []Recommendation{}
	}

	goalSet := make(map[shared.TopicKey]struct{}, len(activeGoals))
	for _, g := range activeGoals {
		goalSet[g] = struct{}{}
	}

	seen := make(map[shared.TopicKey]struct{}, len(records))
	out := make([]Recommendation, 0, len(records)+len(activeGoals))

	for _, r := range records {
		key := r.Key()
		seen[key] = struct{}{}
		if r.IsMastered() {
			continue
		}
		_, hasGoal := goalSet[key]
		out = append(out, score(key, r.Level, r.Confidence, r.LastPracticedAt, hasGoal, now, w))
	}

	for _, key := range activeGoals {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, score(key, LevelNotStarted, 0, nil, true, now, w))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Topic < b.Topic
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func score(key shared.TopicKey, level Level, confidence float64, last *time.Time, hasGoal bool, now time.Time, w Weights) Recommendation {
	confTerm := w.Confidence * (1 - confidence)
	recencyTerm := w.Recency * RecencyWeight(last, now)
	goalTerm := 0.0
	if hasGoal {
		goalTerm = w.Goal
	}

	var reason Reason
	switch {
	case hasGoal && goalTerm >= confTerm && goalTerm >= recencyTerm:
		reason = ReasonActiveGoal
	case last != nil && recencyTerm > confTerm:
		reason = ReasonGoingStale
	case level == LevelNotStarted:
		reason = ReasonNotStarted
	default:
		reason = ReasonLowConfidence
	}

	return Recommendation{
		Subject:    key.Subject,
		Topic:      key.Topic,
		Reason:     reason,
		Priority:   confTerm + recencyTerm + goalTerm,
		Level:      level,
		Confidence: confidence,
		HasGoal:    hasGoal,
	}
}
