package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

var now = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

func daysAgo(d int, hour int) time.Time {
	y, m, day := now.Date()
	return time.Date(y, m, day-d, hour, 0, 0, 0, time.UTC)
}

func TestCurrentStreak_YesterdayAndToday(t *testing.T) {
	times := []time.Time{daysAgo(0, 9), daysAgo(1, 20)}
	assert.Equal(t, 2, CurrentStreak(times, now, time.UTC))
}

func TestCurrentStreak_GapBeforeYesterday(t *testing.T) {
	times := []time.Time{daysAgo(2, 9), daysAgo(3, 9)}
	assert.Equal(t, 0, CurrentStreak(times, now, time.UTC))
}

func TestCurrentStreak_EndingYesterday(t *testing.T) {
	times := []time.Time{daysAgo(1, 9), daysAgo(2, 9), daysAgo(3, 9), daysAgo(5, 9)}
	assert.Equal(t, 3, CurrentStreak(times, now, time.UTC))
}

func TestCurrentStreak_MultipleEventsSameDay(t *testing.T) {
	times := []time.Time{daysAgo(0, 1), daysAgo(0, 2), daysAgo(0, 23)}
	assert.Equal(t, 1, CurrentStreak(times, now, time.UTC))
	assert.Equal(t, 0, CurrentStreak(nil, now, time.UTC))
}

func TestCurrentStreak_UsesLocationCalendar(t *testing.T) {
	plus5 := time.FixedZone("UTC+5", 5*60*60)
	// 20:00 UTC yesterday is already today in UTC+5.
	times := []time.Time{daysAgo(1, 20)}
	local := now.In(plus5)

	assert.Equal(t, 1, CurrentStreak(times, local, plus5))
	assert.True(t, ActiveOn(times, local, plus5))
	assert.False(t, ActiveOn(times, now, time.UTC))
}

func TestLongestStreak(t *testing.T) {
	times := []time.Time{
		daysAgo(0, 9),
		daysAgo(10, 9), daysAgo(11, 9), daysAgo(12, 9), daysAgo(12, 22), daysAgo(13, 9),
		daysAgo(20, 9), daysAgo(21, 9),
	}
	assert.Equal(t, 4, LongestStreak(times, time.UTC))
	assert.Equal(t, 0, LongestStreak(nil, time.UTC))
}

func mustAssessment(t *testing.T, id string, score float64, at time.Time) StudyEvent {
	t.Helper()
	e, err := NewAssessmentEvent(id, "u", shared.TopicKey{Subject: "Math", Topic: "Algebra"}, score, at, now)
	require.NoError(t, err)
	return e
}

func mustSession(t *testing.T, id, topic string, secs int64, at time.Time) StudyEvent {
	t.Helper()
	e, err := NewStudySessionEvent(id, "u", shared.TopicKey{Subject: "Math", Topic: topic}, secs, at, now)
	require.NoError(t, err)
	return e
}

func TestComputeWindowStats(t *testing.T) {
	events := []StudyEvent{
		mustAssessment(t, "a1", 0.8, daysAgo(1, 9)),
		mustAssessment(t, "a2", 0.4, daysAgo(3, 9)),
		mustSession(t, "s1", "Algebra", 1200, daysAgo(2, 9)),
		mustSession(t, "s2", "Geometry", 600, daysAgo(6, 9)),
		mustAssessment(t, "old", 0.0, daysAgo(40, 9)),
	}

	stats := ComputeWindowStats(events, now, 7)

	assert.Equal(t, 4, stats.TotalEvents)
	assert.Equal(t, int64(1800), stats.TotalDurationSeconds)
	require.NotNil(t, stats.AverageScore)
	assert.InDelta(t, 0.6, *stats.AverageScore, 1e-9)
	assert.Equal(t, 2, stats.AssessmentCount)
	assert.Equal(t, 2, stats.SessionCount)
	assert.Equal(t, 2, stats.ActiveTopics)
	assert.InDelta(t, 1800.0/7, stats.DailyAverageSeconds, 1e-9)
	assert.True(t, stats.Since.Equal(now.Add(-7*24*time.Hour)))
}

func TestComputeWindowStats_NoAssessmentsGivesNilAverage(t *testing.T) {
	events := []StudyEvent{mustSession(t, "s1", "Algebra", 300, daysAgo(0, 9))}

	stats := ComputeWindowStats(events, now, 30)
	assert.Nil(t, stats.AverageScore)
	assert.Equal(t, 1, stats.TotalEvents)

	empty := ComputeWindowStats(nil, now, 30)
	assert.Nil(t, empty.AverageScore)
	assert.Zero(t, empty.TotalEvents)
}

func TestComputeWindowStats_BoundaryIsInclusive(t *testing.T) {
	edge := now.Add(-7 * 24 * time.Hour)
	events := []StudyEvent{mustSession(t, "s1", "Algebra", 60, edge)}
	assert.Equal(t, 1, ComputeWindowStats(events, now, 7).TotalEvents)
}

func TestValidateWindow(t *testing.T) {
	assert.NoError(t, ValidateWindow(1))
	assert.NoError(t, ValidateWindow(365))
	assert.True(t, shared.IsValidation(ValidateWindow(0)))
	assert.True(t, shared.IsValidation(ValidateWindow(366)))
}

func TestNewEvents_Validation(t *testing.T) {
	key := shared.TopicKey{Subject: "Math", Topic: "Algebra"}

	_, err := NewAssessmentEvent("e1", "u", key, 1.5, now, now)
	assert.True(t, shared.IsValidation(err))

	_, err = NewStudySessionEvent("e1", "u", key, 0, now, now)
	assert.True(t, shared.IsValidation(err))

	_, err = NewAssessmentEvent("e1", "", key, 0.5, now, now)
	assert.True(t, shared.IsValidation(err))

	_, err = NewAssessmentEvent("e1", "u", key, 0.5, time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC), now)
	assert.True(t, shared.IsValidation(err), "far future occurredAt")

	_, err = NewStudySessionEvent("e1", "u", key, 60, time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC), now)
	assert.True(t, shared.IsValidation(err), "occurredAt before the epoch")

	_, err = NewStudySessionEvent("e1", "u", key, 60, now.Add(MaxFutureSkew), now)
	assert.NoError(t, err, "skew boundary is inclusive")

	e, err := NewStudySessionEvent("e1", "u", key, 60, time.Time{}, now)
	require.NoError(t, err)
	assert.True(t, e.OccurredAt.Equal(now), "zero occurredAt defaults to recording time")
	assert.Nil(t, e.Score)
	assert.Equal(t, KindStudySession, e.Kind)
}
