package activity

import (
	"context"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// ListFilter narrows a study event read.
type ListFilter struct {
	// Since is the inclusive lower bound on OccurredAt. Zero means no bound.
	Since time.Time

	// Subject and Topic restrict to one topic when both are set.
	Subject string
	Topic   string

	// Offset and Limit paginate newest-first results. Limit 0 means no limit.
	Offset int
	Limit  int
}

// Repository reads the study event log. Events are appended only through
// the mastery unit of work so each append commits with its mastery update.
type Repository interface {
	// ListEvents returns the user's events matching filter, newest first.
	ListEvents(ctx context.Context, userID shared.UserID, filter ListFilter) ([]StudyEvent, error)

	// CountEvents returns how many events match filter, ignoring pagination.
	CountEvents(ctx context.Context, userID shared.UserID, filter ListFilter) (int, error)

	// ListEventTimes returns OccurredAt of every event, newest first.
	ListEventTimes(ctx context.Context, userID shared.UserID) ([]time.Time, error)
}
