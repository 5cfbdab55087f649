package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

var (
	now     = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	algebra = shared.TopicKey{Subject: "Math", Topic: "Algebra"}
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func assess(t *testing.T, s *Store, id string, key shared.TopicKey, score float64, at time.Time) mastery.Record {
	t.Helper()
	p := mastery.DefaultPolicy()
	var saved mastery.Record
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx mastery.Tx) error {
		cur, err := tx.LockOrCreate(ctx, mastery.NewRecord("u1", key, at))
		if err != nil {
			return err
		}
		next, err := p.ApplyAssessment(cur, score, at)
		if err != nil {
			return err
		}
		e, err := activity.NewAssessmentEvent(id, "u1", key, score, at, at)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, e); err != nil {
			return err
		}
		saved, err = tx.Save(ctx, next)
		return err
	})
	require.NoError(t, err)
	return saved
}

func TestStore_RecordRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	saved := assess(t, s, "e1", algebra, 0.9, now)
	assert.Equal(t, int64(1), saved.Version)

	got, err := s.Get(ctx, "u1", algebra)
	require.NoError(t, err)
	assert.InDelta(t, 0.27, got.Confidence, 1e-9)
	assert.Equal(t, mastery.LevelLearning, got.Level)
	assert.Equal(t, 1, got.AttemptCount)
	require.NotNil(t, got.LastPracticedAt)
	assert.True(t, got.LastPracticedAt.Equal(now))
	assert.Equal(t, int64(1), got.Version)

	_, err = s.Get(ctx, "u1", shared.TopicKey{Subject: "Math", Topic: "Missing"})
	assert.True(t, shared.IsNotFound(err))
}

func TestStore_RollbackDiscardsEventAndRecord(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx mastery.Tx) error {
		cur, err := tx.LockOrCreate(ctx, mastery.NewRecord("u1", algebra, now))
		require.NoError(t, err)
		e, err := activity.NewAssessmentEvent("e1", "u1", algebra, 0.5, now, now)
		require.NoError(t, err)
		require.NoError(t, tx.AppendEvent(ctx, e))
		_, err = tx.Save(ctx, cur)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Get(ctx, "u1", algebra)
	assert.True(t, shared.IsNotFound(err))
	n, err := s.CountEvents(ctx, "u1", activity.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_SaveRejectsStaleVersion(t *testing.T) {
	s := openStore(t)
	assess(t, s, "e1", algebra, 0.5, now)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx mastery.Tx) error {
		cur, err := tx.LockOrCreate(ctx, mastery.NewRecord("u1", algebra, now))
		require.NoError(t, err)
		cur.Version--
		_, err = tx.Save(ctx, cur)
		return err
	})
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.True(t, shared.IsStorage(err))
}

func TestStore_ConcurrentWritesAreSerialized(t *testing.T) {
	s := openStore(t)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := mastery.DefaultPolicy()
			errs <- s.WithinTx(context.Background(), func(ctx context.Context, tx mastery.Tx) error {
				cur, err := tx.LockOrCreate(ctx, mastery.NewRecord("u1", algebra, now))
				if err != nil {
					return err
				}
				next, err := p.ApplyAssessment(cur, 1, now)
				if err != nil {
					return err
				}
				e, err := activity.NewAssessmentEvent(fmt.Sprintf("e%d", i), "u1", algebra, 1, now, now)
				if err != nil {
					return err
				}
				if err := tx.AppendEvent(ctx, e); err != nil {
					return err
				}
				_, err = tx.Save(ctx, next)
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Get(context.Background(), "u1", algebra)
	require.NoError(t, err)
	assert.Equal(t, writers, got.AttemptCount)
	assert.Equal(t, int64(writers), got.Version)

	n, err := s.CountEvents(context.Background(), "u1", activity.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, writers, n)
}

func TestStore_ListByUserFiltersAndOrders(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	assess(t, s, "e1", shared.TopicKey{Subject: "Physics", Topic: "Optics"}, 0.5, now)
	assess(t, s, "e2", shared.TopicKey{Subject: "Math", Topic: "Geometry"}, 0.5, now)
	assess(t, s, "e3", algebra, 0.5, now)

	all, err := s.ListByUser(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Algebra", all[0].Topic)
	assert.Equal(t, "Geometry", all[1].Topic)
	assert.Equal(t, "Optics", all[2].Topic)

	math, err := s.ListByUser(ctx, "u1", "Math")
	require.NoError(t, err)
	assert.Len(t, math, 2)

	none, err := s.ListByUser(ctx, "someone-else", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStore_ListEventsPaginatesNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assess(t, s, fmt.Sprintf("e%d", i), algebra, 0.5, now.Add(-time.Duration(i)*24*time.Hour))
	}
	assess(t, s, "g", shared.TopicKey{Subject: "Math", Topic: "Geometry"}, 0.5, now)

	page, err := s.ListEvents(ctx, "u1", activity.ListFilter{Topic: "Algebra", Subject: "Math", Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "e1", page[0].ID)
	assert.Equal(t, "e2", page[1].ID)
	require.NotNil(t, page[0].Score)
	assert.Equal(t, 0.5, *page[0].Score)

	recent, err := s.ListEvents(ctx, "u1", activity.ListFilter{Since: now.Add(-36 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	n, err := s.CountEvents(ctx, "u1", activity.ListFilter{Subject: "Math", Topic: "Algebra"})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	times, err := s.ListEventTimes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, times, 6)
	assert.False(t, times[0].Before(times[len(times)-1]))
}

func TestStore_Goals(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	g, err := goal.New("g1", "u1", algebra, mastery.LevelPracticing, now)
	require.NoError(t, err)
	stored, created, err := s.Create(ctx, g)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "g1", stored.ID)

	dup, _ := goal.New("g2", "u1", algebra, mastery.LevelMastered, now.Add(time.Minute))
	stored, created, err = s.Create(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "g1", stored.ID)
	assert.Equal(t, mastery.LevelPracticing, stored.TargetLevel)

	stored.Deactivate(now.Add(time.Hour))
	require.NoError(t, s.Update(ctx, stored))

	got, err := s.GetByID(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.DeactivatedAt)

	_, created, err = s.Create(ctx, dup)
	require.NoError(t, err)
	assert.True(t, created, "a new goal is allowed once the old one is inactive")

	active, err := s.List(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "g2", active[0].ID)

	all, err := s.List(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.GetByID(ctx, "u2", "g1")
	assert.True(t, shared.IsNotFound(err))
	assert.True(t, shared.IsNotFound(s.Update(ctx, goal.LearningGoal{ID: "nope", UserID: "u1"})))
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(context.Background(), MemoryPath)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}
