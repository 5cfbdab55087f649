package query

import (
	"context"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// RecentEventsLimit is how many events the topic detail includes.
const RecentEventsLimit = 10

// GetTopicMasteryQuery asks for one topic's mastery detail.
type GetTopicMasteryQuery struct {
	UserID  string
	Subject string
	Topic   string
}

// GetTopicMasteryResult contains the decayed record and recent history.
type GetTopicMasteryResult struct {
	Mastery MasteryDTO `json:"mastery"`

	// StoredConfidence is the persisted value before read-time decay.
	StoredConfidence float64 `json:"stored_confidence"`

	RecentEvents []StudyEventDTO `json:"recent_events"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// GetTopicMasteryHandler handles GetTopicMasteryQuery.
type GetTopicMasteryHandler struct {
	records mastery.Repository
	events  activity.Repository
	config  Config
}

// NewGetTopicMasteryHandler creates a new handler.
func NewGetTopicMasteryHandler(records mastery.Repository, events activity.Repository, config Config) *GetTopicMasteryHandler {
	return &GetTopicMasteryHandler{records: records, events: events, config: config.withDefaults()}
}

// Handle executes the query. A topic with no record is a not-found error.
func (h *GetTopicMasteryHandler) Handle(ctx context.Context, q GetTopicMasteryQuery) (*GetTopicMasteryResult, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	key, err := shared.NewTopicKey(q.Subject, q.Topic)
	if err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "GetTopicMastery", userID)
	defer span.End()

	rec, err := h.records.Get(ctx, userID, key)
	if err != nil {
		return nil, fail(span, "mastery", "GetTopicMastery", err)
	}
	events, err := h.events.ListEvents(ctx, userID, activity.ListFilter{
		Subject: key.Subject,
		Topic:   key.Topic,
		Limit:   RecentEventsLimit,
	})
	if err != nil {
		return nil, fail(span, "activity", "GetTopicMastery", err)
	}

	now := h.config.Now().UTC()
	return &GetTopicMasteryResult{
		Mastery:          NewMasteryDTO(h.config.Policy.Decay(rec, now)),
		StoredConfidence: rec.Confidence,
		RecentEvents:     NewStudyEventDTOs(events),
		GeneratedAt:      now,
	}, nil
}
