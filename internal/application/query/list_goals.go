package query

import (
	"context"

	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// ListGoalsQuery lists a user's learning goals.
type ListGoalsQuery struct {
	UserID     string
	ActiveOnly bool
}

// ListGoalsResult contains goals, newest first.
type ListGoalsResult struct {
	Goals []GoalDTO `json:"goals"`
}

// ListGoalsHandler handles ListGoalsQuery.
type ListGoalsHandler struct {
	goals   goal.Repository
	records mastery.Repository
	config  Config
}

// NewListGoalsHandler creates a new handler.
func NewListGoalsHandler(goals goal.Repository, records mastery.Repository, config Config) *ListGoalsHandler {
	return &ListGoalsHandler{goals: goals, records: records, config: config.withDefaults()}
}

// Handle executes the query. Each goal carries the topic's decayed level.
func (h *ListGoalsHandler) Handle(ctx context.Context, q ListGoalsQuery) (*ListGoalsResult, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "ListGoals", userID)
	defer span.End()

	goals, err := h.goals.List(ctx, userID, q.ActiveOnly)
	if err != nil {
		return nil, fail(span, "goal", "ListGoals", err)
	}
	records, err := h.records.ListByUser(ctx, userID, "")
	if err != nil {
		return nil, fail(span, "mastery", "ListGoals", err)
	}

	now := h.config.Now().UTC()
	levels := make(map[shared.TopicKey]mastery.Level, len(records))
	for _, r := range h.config.Policy.DecayAll(records, now) {
		levels[r.Key()] = r.Level
	}

	out := make([]GoalDTO, len(goals))
	for i, g := range goals {
		out[i] = NewGoalDTO(g, levels[g.Key()])
	}
	return &ListGoalsResult{Goals: out}, nil
}
