package command

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() RecorderConfig {
	n := 0
	return RecorderConfig{
		Policy: mastery.DefaultPolicy(),
		Now:    func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("evt-%d", n)
		},
	}
}

func TestRecordAssessment_FirstAndSecondScore(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	h := NewRecordAssessmentHandler(store, pub, logger.Nop(), testConfig())
	ctx := context.Background()

	res, err := h.Handle(ctx, RecordAssessmentCommand{UserID: "u1", Subject: "Math", Topic: "Algebra", Score: 0.9})
	require.NoError(t, err)
	assert.InDelta(t, 0.27, res.Record.Confidence, 1e-9)
	assert.Equal(t, mastery.LevelLearning, res.Record.Level)
	assert.Equal(t, 1, res.Record.AttemptCount)
	assert.Equal(t, mastery.LevelNotStarted, res.PreviousLevel)
	assert.True(t, res.LevelChanged)
	assert.Equal(t, "evt-1", res.EventID)

	res, err = h.Handle(ctx, RecordAssessmentCommand{UserID: "u1", Subject: "Math", Topic: "Algebra", Score: 0.9})
	require.NoError(t, err)
	assert.InDelta(t, 0.459, res.Record.Confidence, 1e-9)
	assert.Equal(t, mastery.LevelLearning, res.Record.Level)
	assert.Equal(t, 2, res.Record.AttemptCount)
	assert.False(t, res.LevelChanged)

	require.Len(t, store.events, 2)
	assert.Equal(t, activity.KindAssessment, store.events[0].Kind)
	assert.True(t, store.events[0].OccurredAt.Equal(fixedNow))

	assert.Equal(t, []shared.EventType{
		shared.EventAssessmentRecorded,
		shared.EventLevelChanged,
		shared.EventAssessmentRecorded,
	}, pub.types())
}

func TestRecordAssessment_DefaultsSubject(t *testing.T) {
	store := newMemStore()
	h := NewRecordAssessmentHandler(store, nil, logger.Nop(), testConfig())

	res, err := h.Handle(context.Background(), RecordAssessmentCommand{UserID: "u1", Topic: "Loops", Score: 0.5})
	require.NoError(t, err)
	assert.Equal(t, shared.DefaultSubject, res.Record.Subject)
}

func TestRecordAssessment_ValidationLeavesNoState(t *testing.T) {
	store := newMemStore()
	h := NewRecordAssessmentHandler(store, nil, logger.Nop(), testConfig())
	ctx := context.Background()

	cases := []RecordAssessmentCommand{
		{UserID: "u1", Subject: "Math", Topic: "Algebra", Score: 1.1},
		{UserID: "u1", Subject: "Math", Topic: "Algebra", Score: -0.1},
		{UserID: "u1", Subject: "Math", Topic: "  ", Score: 0.5},
		{UserID: "", Subject: "Math", Topic: "Algebra", Score: 0.5},
	}
	for _, cmd := range cases {
		_, err := h.Handle(ctx, cmd)
		assert.True(t, shared.IsValidation(err), "%+v", cmd)
	}
	assert.Empty(t, store.records)
	assert.Empty(t, store.events)
}

func TestRecordAssessment_StorageFailureIsAtomic(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(s *memStore)
	}{
		{"append fails", func(s *memStore) { s.failAppend = true }},
		{"save fails", func(s *memStore) { s.failSave = true }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			tc.setup(store)
			pub := &recordingPublisher{}
			h := NewRecordAssessmentHandler(store, pub, logger.Nop(), testConfig())

			_, err := h.Handle(context.Background(), RecordAssessmentCommand{UserID: "u1", Subject: "Math", Topic: "Algebra", Score: 0.5})
			require.Error(t, err)
			assert.True(t, shared.IsStorage(err))
			assert.ErrorIs(t, err, errDiskFull)

			assert.Empty(t, store.records)
			assert.Empty(t, store.events)
			assert.Empty(t, pub.types())
		})
	}
}

func TestRecordAssessment_PublishFailureKeepsWrite(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{err: fmt.Errorf("bus down")}
	h := NewRecordAssessmentHandler(store, pub, logger.Nop(), testConfig())

	_, err := h.Handle(context.Background(), RecordAssessmentCommand{UserID: "u1", Subject: "Math", Topic: "Algebra", Score: 0.5})
	require.NoError(t, err)
	assert.Len(t, store.events, 1)
}

func TestRecordStudySession_NudgesWithoutAttempt(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	h := NewRecordStudySessionHandler(store, pub, logger.Nop(), testConfig())

	res, err := h.Handle(context.Background(), RecordStudySessionCommand{UserID: "u1", Subject: "Math", Topic: "Algebra", DurationSeconds: 1800})
	require.NoError(t, err)
	assert.InDelta(t, 0.025, res.Record.Confidence, 1e-9)
	assert.Equal(t, 0, res.Record.AttemptCount)
	assert.Equal(t, int64(1800), res.Record.StudySeconds)
	require.NotNil(t, res.Record.LastPracticedAt)

	require.Len(t, store.events, 1)
	assert.Equal(t, activity.KindStudySession, store.events[0].Kind)
	assert.Nil(t, store.events[0].Score)
	assert.Equal(t, []shared.EventType{shared.EventStudySessionRecorded}, pub.types())

	_, err = h.Handle(context.Background(), RecordStudySessionCommand{UserID: "u1", Subject: "Math", Topic: "Algebra", DurationSeconds: 0})
	assert.True(t, shared.IsValidation(err))
}

func TestRecordStudySession_CapsNudge(t *testing.T) {
	store := newMemStore()
	h := NewRecordStudySessionHandler(store, nil, logger.Nop(), testConfig())

	res, err := h.Handle(context.Background(), RecordStudySessionCommand{UserID: "u1", Subject: "Math", Topic: "Algebra", DurationSeconds: 4 * 3600})
	require.NoError(t, err)
	assert.InDelta(t, 0.05, res.Record.Confidence, 1e-9)
}

func TestRecord_BackdatedEventKeepsLatestPractice(t *testing.T) {
	store := newMemStore()
	h := NewRecordAssessmentHandler(store, nil, logger.Nop(), testConfig())
	ctx := context.Background()

	_, err := h.Handle(ctx, RecordAssessmentCommand{UserID: "u1", Subject: "Math", Topic: "Algebra", Score: 0.5})
	require.NoError(t, err)

	res, err := h.Handle(ctx, RecordAssessmentCommand{
		UserID: "u1", Subject: "Math", Topic: "Algebra", Score: 0.5,
		OccurredAt: fixedNow.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Record.LastPracticedAt)
	assert.True(t, res.Record.LastPracticedAt.Equal(fixedNow))
}
