package http

import (
	"net/http"

	"github.com/alem-hub/mastery-tracker/internal/application/command"
	"github.com/alem-hub/mastery-tracker/internal/application/query"
	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListGoals handles GET /api/v1/goals?active=
func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "active", true)
	if err != nil {
		s.writeDomainError(w, r, "ListGoals", err)
		return
	}

	res, err := s.deps.ListGoals.Handle(r.Context(), query.ListGoalsQuery{
		UserID:     userIDFrom(r),
		ActiveOnly: activeOnly,
	})
	if err != nil {
		s.writeDomainError(w, r, "ListGoals", err)
		return
	}
	s.writeJSONWithMeta(w, r, http.StatusOK, res.Goals, &ResponseMeta{TotalCount: len(res.Goals)})
}

// handleCreateGoal handles POST /api/v1/goals. An existing active goal for
// the topic is returned with 200 instead of 201.
func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, "CreateGoal", err)
		return
	}

	res, err := s.deps.CreateGoal.Handle(r.Context(), command.CreateGoalCommand{
		UserID:      userIDFrom(r),
		Subject:     req.Subject,
		Topic:       req.Topic,
		TargetLevel: req.TargetLevel,
	})
	if err != nil {
		s.writeDomainError(w, r, "CreateGoal", err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, r, status, s.goalDTO(r, res.Goal))
}

// handleDeactivateGoal handles DELETE /api/v1/goals/{id}
func (s *Server) handleDeactivateGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.DeactivateGoal.Handle(r.Context(), command.DeactivateGoalCommand{
		UserID: userIDFrom(r),
		GoalID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, "DeactivateGoal", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.goalDTO(r, *g))
}

// goalDTO attaches the topic's current decayed level. A topic without a
// record, or a failed lookup, reports NotStarted.
func (s *Server) goalDTO(r *http.Request, g goal.LearningGoal) query.GoalDTO {
	current := mastery.LevelNotStarted
	if s.deps.GetTopicMastery != nil {
		res, err := s.deps.GetTopicMastery.Handle(r.Context(), query.GetTopicMasteryQuery{
			UserID:  g.UserID.String(),
			Subject: g.Subject,
			Topic:   g.Topic,
		})
		if err == nil {
			current = res.Mastery.Level
		} else if !shared.IsNotFound(err) {
			s.logger.Warn("goal level lookup failed", logger.String("goal_id", g.ID), logger.Err(err))
		}
	}
	return query.NewGoalDTO(g, current)
}
