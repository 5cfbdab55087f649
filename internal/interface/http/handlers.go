package http

import (
	"net/http"

	"github.com/alem-hub/mastery-tracker/internal/application/command"
	"github.com/alem-hub/mastery-tracker/internal/application/query"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every check. Unhealthy optional checks still return
// 200 as long as the service is ready.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		s.writeJSON(w, r, http.StatusOK, map[string]any{
			"healthy": true,
			"ready":   true,
			"uptime":  s.Uptime().String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	s.writeJSONWithMeta(w, r, code, status, nil)
}

// handleReady reports whether every dependency answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message, "")
			return
		}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive reports that the process is up.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// recordResponse is returned by both write endpoints.
type recordResponse struct {
	EventID       string           `json:"event_id"`
	Mastery       query.MasteryDTO `json:"mastery"`
	PreviousLevel mastery.Level    `json:"previous_level"`
	LevelChanged  bool             `json:"level_changed"`
}

func newRecordResponse(res *command.RecordResult) recordResponse {
	return recordResponse{
		EventID:       res.EventID,
		Mastery:       query.NewMasteryDTO(res.Record),
		PreviousLevel: res.PreviousLevel,
		LevelChanged:  res.LevelChanged,
	}
}

// handleRecordAssessment handles POST /api/v1/progress/assessments
func (s *Server) handleRecordAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, "RecordAssessment", err)
		return
	}

	res, err := s.deps.RecordAssessment.Handle(r.Context(), command.RecordAssessmentCommand{
		UserID:     userIDFrom(r),
		Subject:    req.Subject,
		Topic:      req.Topic,
		Score:      *req.Score,
		OccurredAt: timeOrZero(req.OccurredAt),
	})
	if err != nil {
		s.writeDomainError(w, r, "RecordAssessment", err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, newRecordResponse(res))
}

// handleRecordStudySession handles POST /api/v1/progress/study-sessions
func (s *Server) handleRecordStudySession(w http.ResponseWriter, r *http.Request) {
	var req studySessionRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, "RecordStudySession", err)
		return
	}

	res, err := s.deps.RecordStudySession.Handle(r.Context(), command.RecordStudySessionCommand{
		UserID:          userIDFrom(r),
		Subject:         req.Subject,
		Topic:           req.Topic,
		DurationSeconds: req.DurationSeconds,
		OccurredAt:      timeOrZero(req.OccurredAt),
	})
	if err != nil {
		s.writeDomainError(w, r, "RecordStudySession", err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, newRecordResponse(res))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetHeatmap handles GET /api/v1/progress/heatmap
func (s *Server) handleGetHeatmap(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetHeatmap.Handle(r.Context(), query.GetHeatmapQuery{
		UserID:  userIDFrom(r),
		Subject: r.URL.Query().Get("subject"),
	})
	if err != nil {
		s.writeDomainError(w, r, "GetHeatmap", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

// handleGetRecommendations handles GET /api/v1/progress/recommendations
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", s.config.DefaultRecommendations)
	if err != nil {
		s.writeDomainError(w, r, "GetRecommendations", err)
		return
	}

	res, err := s.deps.GetRecommendations.Handle(r.Context(), query.GetRecommendationsQuery{
		UserID: userIDFrom(r),
		Limit:  limit,
	})
	if err != nil {
		s.writeDomainError(w, r, "GetRecommendations", err)
		return
	}
	s.writeJSONWithMeta(w, r, http.StatusOK, res, &ResponseMeta{Limit: res.Limit})
}

// handleGetStreak handles GET /api/v1/progress/streak
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetStreak.Handle(r.Context(), query.GetStreakQuery{UserID: userIDFrom(r)})
	if err != nil {
		s.writeDomainError(w, r, "GetStreak", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

// handleGetAnalytics handles GET /api/v1/progress/analytics
func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", s.config.DefaultWindowDays)
	if err != nil {
		s.writeDomainError(w, r, "GetWindowStats", err)
		return
	}

	res, err := s.deps.GetWindowStats.Handle(r.Context(), query.GetWindowStatsQuery{
		UserID:     userIDFrom(r),
		WindowDays: days,
	})
	if err != nil {
		s.writeDomainError(w, r, "GetWindowStats", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

// handleGetTopicMastery handles GET /api/v1/progress/topics/{subject}/{topic}
func (s *Server) handleGetTopicMastery(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetTopicMastery.Handle(r.Context(), query.GetTopicMasteryQuery{
		UserID:  userIDFrom(r),
		Subject: r.PathValue("subject"),
		Topic:   r.PathValue("topic"),
	})
	if err != nil {
		s.writeDomainError(w, r, "GetTopicMastery", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

// handleListStudyEvents handles GET /api/v1/progress/events
func (s *Server) handleListStudyEvents(w http.ResponseWriter, r *http.Request) {
	q := query.ListStudyEventsQuery{UserID: userIDFrom(r)}
	var err error
	if q.Days, err = queryInt(r, "days", s.config.DefaultWindowDays); err == nil {
		if q.Skip, err = queryInt(r, "skip", 0); err == nil {
			q.Limit, err = queryInt(r, "limit", s.config.DefaultEventLimit)
		}
	}
	if err != nil {
		s.writeDomainError(w, r, "ListStudyEvents", err)
		return
	}

	res, err := s.deps.ListStudyEvents.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, "ListStudyEvents", err)
		return
	}
	s.writeJSONWithMeta(w, r, http.StatusOK, res.Events, &ResponseMeta{
		TotalCount: res.TotalCount,
		Skip:       res.Skip,
		Limit:      res.Limit,
		HasMore:    res.HasMore,
	})
}

// handleGetDashboard handles GET /api/v1/progress/dashboard
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetDashboard.Handle(r.Context(), query.GetDashboardQuery{UserID: userIDFrom(r)})
	if err != nil {
		s.writeDomainError(w, r, "GetDashboard", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}
