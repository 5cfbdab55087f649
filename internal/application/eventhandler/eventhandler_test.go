package eventhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeInvalidator struct {
	users []shared.UserID
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, userID shared.UserID) error {
	f.users = append(f.users, userID)
	return f.err
}

type captureBus struct {
	subs map[shared.EventType]int
}

func (b *captureBus) Subscribe(t shared.EventType, _ shared.EventHandler) error {
	if b.subs == nil {
		b.subs = map[shared.EventType]int{}
	}
	b.subs[t]++
	return nil
}

func (b *captureBus) SubscribeAll(shared.EventHandler) error { return nil }

type listGoals struct {
	goal.Repository
	goals []goal.LearningGoal
}

func (l listGoals) List(_ context.Context, userID shared.UserID, activeOnly bool) ([]goal.LearningGoal, error) {
	out := []goal.LearningGoal{}
	for _, g := range l.goals {
		if g.UserID == userID && (!activeOnly || g.IsActive) {
			out = append(out, g)
		}
	}
	return out, nil
}

func progressEvent(user string) shared.Event {
	return shared.ProgressRecordedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventAssessmentRecorded, user, now),
		Subject:   "Math",
		Topic:     "Algebra",
	}
}

func TestOnProgressRecorded_InvalidatesUser(t *testing.T) {
	cache := &fakeInvalidator{}
	h := NewOnProgressRecordedHandler(cache, logger.Nop())

	require.NoError(t, h.Handle(context.Background(), progressEvent("u1")))
	assert.Equal(t, []shared.UserID{"u1"}, cache.users)

	cache.err = errors.New("redis down")
	assert.NoError(t, h.Handle(context.Background(), progressEvent("u2")), "cache failure is swallowed")

	bus := &captureBus{}
	require.NoError(t, h.Register(bus))
	assert.Equal(t, 1, bus.subs[shared.EventAssessmentRecorded])
	assert.Equal(t, 1, bus.subs[shared.EventStudySessionRecorded])
}

func TestOnProgressRecorded_NilCache(t *testing.T) {
	h := NewOnProgressRecordedHandler(nil, logger.Nop())
	assert.NoError(t, h.Handle(context.Background(), progressEvent("u1")))
}

func TestOnLevelChanged_ReportsReachedGoals(t *testing.T) {
	key := shared.TopicKey{Subject: "Math", Topic: "Algebra"}
	practicing, err := goal.New("g1", "u1", key, mastery.LevelPracticing, now)
	require.NoError(t, err)
	otherTopic, err := goal.New("g2", "u1", shared.TopicKey{Subject: "Math", Topic: "Other"}, mastery.LevelPracticing, now)
	require.NoError(t, err)

	var out bytes.Buffer
	h := NewOnLevelChangedHandler(listGoals{goals: []goal.LearningGoal{practicing, otherTopic}},
		logger.New(logger.Options{Output: &out, Level: logger.LevelInfo, Format: "json"}))

	err = h.Handle(context.Background(), shared.LevelChangedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLevelChanged, "u1", now),
		Subject:   "Math",
		Topic:     "Algebra",
		OldLevel:  "learning",
		NewLevel:  "practicing",
	})
	require.NoError(t, err)

	var reached []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == "learning goal reached" {
			reached = append(reached, entry)
		}
	}
	require.Len(t, reached, 1, "each reached goal is logged once")
	assert.Equal(t, "g1", reached[0]["goal_id"])
	assert.Equal(t, "Algebra", reached[0]["topic"])

	// Other event types are ignored.
	assert.NoError(t, h.Handle(context.Background(), progressEvent("u1")))
}
