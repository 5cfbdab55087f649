package query

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDATIONS QUERY
// Ranks what the user should study next. Computed fresh on every call.
// ══════════════════════════════════════════════════════════════════════════════

// GetRecommendationsQuery contains parameters for recommendations.
type GetRecommendationsQuery struct {
	UserID string

	// Limit must be positive. Values above the configured maximum are capped.
	Limit int
}

// Validate validates the query.
func (q *GetRecommendationsQuery) Validate() error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return err
	}
	if q.Limit <= 0 {
		return shared.ValidationError("mastery", "GetRecommendations", "limit must be positive")
	}
	return nil
}

// GetRecommendationsResult contains the ranked topics.
type GetRecommendationsResult struct {
	Recommendations []mastery.Recommendation `json:"recommendations"`
	Limit           int                      `json:"limit"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// GetRecommendationsHandler handles GetRecommendationsQuery.
type GetRecommendationsHandler struct {
	records mastery.Repository
	goals   goal.Repository
	config  Config
}

// NewGetRecommendationsHandler creates a new handler.
func NewGetRecommendationsHandler(records mastery.Repository, goals goal.Repository, config Config) *GetRecommendationsHandler {
	return &GetRecommendationsHandler{records: records, goals: goals, config: config.withDefaults()}
}

// Handle executes the query. Records are decayed before ranking so a topic
// that decayed out of Mastered is recommended again.
func (h *GetRecommendationsHandler) Handle(ctx context.Context, q GetRecommendationsQuery) (*GetRecommendationsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	userID, _ := shared.NewUserID(q.UserID)
	limit := min(q.Limit, h.config.MaxLimit)

	ctx, span := startSpan(ctx, "GetRecommendations", userID)
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	records, err := h.records.ListByUser(ctx, userID, "")
	if err != nil {
		return nil, fail(span, "mastery", "GetRecommendations", err)
	}
	goals, err := h.goals.List(ctx, userID, true)
	if err != nil {
		return nil, fail(span, "goal", "GetRecommendations", err)
	}

	now := h.config.Now().UTC()
	decayed := h.config.Policy.DecayAll(records, now)
	recs := mastery.Rank(decayed, goal.ActiveKeys(goals), now, h.config.Weights, limit)

	return &GetRecommendationsResult{Recommendations: recs, Limit: limit, GeneratedAt: now}, nil
}
