package query

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// GetWindowStatsQuery asks for aggregates over the last WindowDays days.
type GetWindowStatsQuery struct {
	UserID     string
	WindowDays int
}

// Validate validates the query.
func (q GetWindowStatsQuery) Validate() error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return err
	}
	return activity.ValidateWindow(q.WindowDays)
}

// GetWindowStatsHandler handles GetWindowStatsQuery.
type GetWindowStatsHandler struct {
	events activity.Repository
	config Config
}

// NewGetWindowStatsHandler creates a new handler.
func NewGetWindowStatsHandler(events activity.Repository, config Config) *GetWindowStatsHandler {
	return &GetWindowStatsHandler{events: events, config: config.withDefaults()}
}

// Handle executes the query.
func (h *GetWindowStatsHandler) Handle(ctx context.Context, q GetWindowStatsQuery) (*activity.WindowStats, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	userID, _ := shared.NewUserID(q.UserID)

	ctx, span := startSpan(ctx, "GetWindowStats", userID)
	defer span.End()
	span.SetAttributes(attribute.Int("window_days", q.WindowDays))

	now := h.config.Now().UTC()
	events, err := h.events.ListEvents(ctx, userID, activity.ListFilter{Since: activity.WindowStart(now, q.WindowDays)})
	if err != nil {
		return nil, fail(span, "activity", "GetWindowStats", err)
	}

	stats := activity.ComputeWindowStats(events, now, q.WindowDays)
	return &stats, nil
}
