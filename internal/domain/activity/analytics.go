package activity

import (
	"sort"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// STREAKS
// ═══════════════════════════════════════════════════════════════════════════

// activeDays collapses timestamps into the set of calendar days in loc.
func activeDays(times []time.Time, loc *time.Location) map[time.Time]struct{} {
	days := make(map[time.Time]struct{}, len(times))
	for _, t := range times {
		days[timeutil.StartOfDay(t, loc)] = struct{}{}
	}
	return days
}

// CurrentStreak counts consecutive calendar days with activity, ending today
// or yesterday relative to now. It is 0 when neither day has activity.
func CurrentStreak(times []time.Time, now time.Time, loc *time.Location) int {
	days := activeDays(times, loc)
	cursor := timeutil.StartOfDay(now, loc)
	if _, ok := days[cursor]; !ok {
		cursor = timeutil.PrevDay(cursor)
		if _, ok := days[cursor]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		cursor = timeutil.PrevDay(cursor)
	}
}

// LongestStreak returns the longest run of consecutive active days.
func LongestStreak(times []time.Time, loc *time.Location) int {
	set := activeDays(times, loc)
	if len(set) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if timeutil.DaysBetween(days[i-1], days[i], loc) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// ActiveOn reports whether any timestamp falls on day's calendar day.
func ActiveOn(times []time.Time, day time.Time, loc *time.Location) bool {
	for _, t := range times {
		if timeutil.IsSameDay(t, day, loc) {
			return true
		}
	}
	return false
}

// ═══════════════════════════════════════════════════════════════════════════
// WINDOW STATS
// ═══════════════════════════════════════════════════════════════════════════

// MaxWindowDays bounds analytics windows.
const MaxWindowDays = 365

// WindowStats summarizes the event log over a trailing window.
// AverageScore is nil when the window holds no assessments.
type WindowStats struct {
	WindowDays           int       `json:"window_days"`
	Since                time.Time `json:"since"`
	TotalEvents          int       `json:"total_events"`
	TotalDurationSeconds int64     `json:"total_duration_seconds"`
	AverageScore         *float64  `json:"average_score"`
	AssessmentCount      int       `json:"assessment_count"`
	SessionCount         int       `json:"session_count"`
	ActiveTopics         int       `json:"active_topics"`
	DailyAverageSeconds  float64   `json:"daily_average_seconds"`
}

// WindowStart returns the inclusive lower bound of a window ending at now.
func WindowStart(now time.Time, windowDays int) time.Time {
	return now.Add(-time.Duration(windowDays) * timeutil.Day)
}

// ValidateWindow rejects windows outside [1, MaxWindowDays].
func ValidateWindow(windowDays int) error {
	if windowDays < 1 || windowDays > MaxWindowDays {
		return shared.ValidationError(domainName, "ValidateWindow", "window days must be between 1 and 365")
	}
	return nil
}

// ComputeWindowStats aggregates events with OccurredAt >= now - windowDays.
func ComputeWindowStats(events []StudyEvent, now time.Time, windowDays int) WindowStats {
	since := WindowStart(now, windowDays)
	stats := WindowStats{WindowDays: windowDays, Since: since}

	var scoreSum float64
	topics := make(map[shared.TopicKey]struct{})

	for _, e := range events {
		if e.OccurredAt.Before(since) {
			continue
		}
		stats.TotalEvents++
		topics[e.Key()] = struct{}{}

		switch e.Kind {
		case KindAssessment:
			stats.AssessmentCount++
			if e.Score != nil {
				scoreSum += *e.Score
			}
		case KindStudySession:
			stats.SessionCount++
			stats.TotalDurationSeconds += e.DurationSeconds
		}
	}

	if stats.AssessmentCount > 0 {
		avg := scoreSum / float64(stats.AssessmentCount)
		stats.AverageScore = &avg
	}
	stats.ActiveTopics = len(topics)
	if windowDays > 0 {
		stats.DailyAverageSeconds = float64(stats.TotalDurationSeconds) / float64(windowDays)
	}
	return stats
}
