package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// ListStudyEventsQuery pages through recent study events.
type ListStudyEventsQuery struct {
	UserID string

	// Days bounds occurredAt from below: now - Days.
	Days int

	Skip  int
	Limit int
}

// Validate validates the query against the configured page cap.
func (q ListStudyEventsQuery) Validate(maxLimit int) error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return err
	}
	if err := activity.ValidateWindow(q.Days); err != nil {
		return err
	}
	if q.Skip < 0 {
		return shared.ValidationError("activity", "ListStudyEvents", "skip must not be negative")
	}
	if q.Limit <= 0 || q.Limit > maxLimit {
		return shared.ValidationError("activity", "ListStudyEvents", fmt.Sprintf("limit must be between 1 and %d", maxLimit))
	}
	return nil
}

// ListStudyEventsResult contains one page of events, newest first.
type ListStudyEventsResult struct {
	Events     []StudyEventDTO `json:"events"`
	TotalCount int             `json:"total_count"`
	Skip       int             `json:"skip"`
	Limit      int             `json:"limit"`
	HasMore    bool            `json:"has_more"`
}

// ListStudyEventsHandler handles ListStudyEventsQuery.
type ListStudyEventsHandler struct {
	events activity.Repository
	config Config
}

// NewListStudyEventsHandler creates a new handler.
func NewListStudyEventsHandler(events activity.Repository, config Config) *ListStudyEventsHandler {
	return &ListStudyEventsHandler{events: events, config: config.withDefaults()}
}

// Handle executes the query.
func (h *ListStudyEventsHandler) Handle(ctx context.Context, q ListStudyEventsQuery) (*ListStudyEventsResult, error) {
	if err := q.Validate(h.config.MaxLimit); err != nil {
		return nil, err
	}
	userID, _ := shared.NewUserID(q.UserID)

	ctx, span := startSpan(ctx, "ListStudyEvents", userID)
	defer span.End()

	filter := activity.ListFilter{
		Since:  activity.WindowStart(h.config.Now().UTC(), q.Days),
		Offset: q.Skip,
		Limit:  q.Limit,
	}
	events, err := h.events.ListEvents(ctx, userID, filter)
	if err != nil {
		return nil, fail(span, "activity", "ListStudyEvents", err)
	}
	total, err := h.events.CountEvents(ctx, userID, filter)
	if err != nil {
		return nil, fail(span, "activity", "ListStudyEvents", err)
	}

	return &ListStudyEventsResult{
		Events:     NewStudyEventDTOs(events),
		TotalCount: total,
		Skip:       q.Skip,
		Limit:      q.Limit,
		HasMore:    q.Skip+len(events) < total,
	}, nil
}
