package command

import (
	"context"
	"errors"
	"sync"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

var errDiskFull = errors.New("disk full")

// memStore is a UnitOfWork that stages writes and applies them on commit.
type memStore struct {
	mu      sync.Mutex
	records map[shared.TopicKey]mastery.Record
	events  []activity.StudyEvent

	failAppend bool
	failSave   bool
}

func newMemStore() *memStore {
	return &memStore{records: map[shared.TopicKey]mastery.Record{}}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx mastery.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: map[shared.TopicKey]mastery.Record{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, r := range tx.staged {
		s.records[k] = r
	}
	s.events = append(s.events, tx.events...)
	return nil
}

type memTx struct {
	store  *memStore
	staged map[shared.TopicKey]mastery.Record
	events []activity.StudyEvent
}

func (t *memTx) LockOrCreate(_ context.Context, initial mastery.Record) (mastery.Record, error) {
	if r, ok := t.staged[initial.Key()]; ok {
		return r, nil
	}
	if r, ok := t.store.records[initial.Key()]; ok {
		return r, nil
	}
	t.staged[initial.Key()] = initial
	return initial, nil
}

func (t *memTx) Save(_ context.Context, r mastery.Record) (mastery.Record, error) {
	if t.store.failSave {
		return mastery.Record{}, errDiskFull
	}
	r.Version++
	t.staged[r.Key()] = r
	return r, nil
}

func (t *memTx) AppendEvent(_ context.Context, e activity.StudyEvent) error {
	if t.store.failAppend {
		return errDiskFull
	}
	t.events = append(t.events, e)
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// memGoals is an in-memory goal.Repository.
type memGoals struct {
	goals   []goal.LearningGoal
	failErr error
}

func (m *memGoals) Create(_ context.Context, g goal.LearningGoal) (goal.LearningGoal, bool, error) {
	if m.failErr != nil {
		return goal.LearningGoal{}, false, m.failErr
	}
	for _, existing := range m.goals {
		if existing.IsActive && existing.UserID == g.UserID && existing.Key() == g.Key() {
			return existing, false, nil
		}
	}
	m.goals = append(m.goals, g)
	return g, true, nil
}

func (m *memGoals) GetByID(_ context.Context, userID shared.UserID, id string) (goal.LearningGoal, error) {
	for _, g := range m.goals {
		if g.UserID == userID && g.ID == id {
			return g, nil
		}
	}
	return goal.LearningGoal{}, shared.NotFoundError("goal", "GetByID", "goal "+id+" not found")
}

func (m *memGoals) List(_ context.Context, userID shared.UserID, activeOnly bool) ([]goal.LearningGoal, error) {
	out := []goal.LearningGoal{}
	for _, g := range m.goals {
		if g.UserID == userID && (!activeOnly || g.IsActive) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memGoals) Update(_ context.Context, g goal.LearningGoal) error {
	if m.failErr != nil {
		return m.failErr
	}
	for i := range m.goals {
		if m.goals[i].ID == g.ID {
			m.goals[i] = g
			return nil
		}
	}
	return shared.NotFoundError("goal", "Update", "goal "+g.ID+" not found")
}
