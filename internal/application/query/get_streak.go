package query

import (
	"context"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STREAK QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStreakQuery contains parameters for the streak summary.
type GetStreakQuery struct {
	UserID string
}

// StreakResult summarizes consecutive study days.
type StreakResult struct {
	// Current counts consecutive active days ending today or yesterday.
	Current int `json:"current"`

	// Longest is the best run in the whole log.
	Longest int `json:"longest"`

	// ActiveToday is true when an event falls on today's date.
	ActiveToday bool `json:"active_today"`

	Timezone    string    `json:"timezone"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GetStreakHandler handles GetStreakQuery.
type GetStreakHandler struct {
	events activity.Repository
	config Config
}

// NewGetStreakHandler creates a new handler.
func NewGetStreakHandler(events activity.Repository, config Config) *GetStreakHandler {
	return &GetStreakHandler{events: events, config: config.withDefaults()}
}

// Handle executes the query.
func (h *GetStreakHandler) Handle(ctx context.Context, q GetStreakQuery) (*StreakResult, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "GetStreak", userID)
	defer span.End()

	times, err := h.events.ListEventTimes(ctx, userID)
	if err != nil {
		return nil, fail(span, "activity", "GetStreak", err)
	}

	loc := h.config.Location
	now := h.config.Now().In(loc)
	return &StreakResult{
		Current:     activity.CurrentStreak(times, now, loc),
		Longest:     activity.LongestStreak(times, loc),
		ActiveToday: activity.ActiveOn(times, now, loc),
		Timezone:    loc.String(),
		GeneratedAt: now.UTC(),
	}, nil
}
