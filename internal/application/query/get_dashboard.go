package query

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// DashboardWindowDays is the window of the dashboard stats.
const DashboardWindowDays = 30

// GetDashboardQuery asks for the combined overview.
type GetDashboardQuery struct {
	UserID string
}

// DashboardResult combines the heatmap, top recommendations, streak and
// 30-day stats.
type DashboardResult struct {
	Heatmap         mastery.Heatmap          `json:"heatmap"`
	Recommendations []mastery.Recommendation `json:"recommendations"`
	Streak          StreakResult             `json:"streak"`
	Stats           activity.WindowStats     `json:"stats"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// GetDashboardHandler fans out to the individual read handlers.
type GetDashboardHandler struct {
	heatmap         *GetHeatmapHandler
	recommendations *GetRecommendationsHandler
	streak          *GetStreakHandler
	stats           *GetWindowStatsHandler
	config          Config
}

// NewGetDashboardHandler creates a new handler.
func NewGetDashboardHandler(
	heatmap *GetHeatmapHandler,
	recommendations *GetRecommendationsHandler,
	streak *GetStreakHandler,
	stats *GetWindowStatsHandler,
	config Config,
) *GetDashboardHandler {
	return &GetDashboardHandler{
		heatmap:         heatmap,
		recommendations: recommendations,
		streak:          streak,
		stats:           stats,
		config:          config.withDefaults(),
	}
}

// Handle runs the four reads concurrently; the first failure cancels the rest.
func (h *GetDashboardHandler) Handle(ctx context.Context, q GetDashboardQuery) (*DashboardResult, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "GetDashboard", userID)
	defer span.End()

	var (
		res = &DashboardResult{GeneratedAt: h.config.Now().UTC()}
		uid = userID.String()
	)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := h.heatmap.Handle(ctx, GetHeatmapQuery{UserID: uid})
		if err != nil {
			return err
		}
		res.Heatmap = r.Heatmap
		return nil
	})
	g.Go(func() error {
		r, err := h.recommendations.Handle(ctx, GetRecommendationsQuery{UserID: uid, Limit: h.config.DefaultRecommendations})
		if err != nil {
			return err
		}
		res.Recommendations = r.Recommendations
		return nil
	})
	g.Go(func() error {
		r, err := h.streak.Handle(ctx, GetStreakQuery{UserID: uid})
		if err != nil {
			return err
		}
		res.Streak = *r
		return nil
	})
	g.Go(func() error {
		r, err := h.stats.Handle(ctx, GetWindowStatsQuery{UserID: uid, WindowDays: DashboardWindowDays})
		if err != nil {
			return err
		}
		res.Stats = *r
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fail(span, "dashboard", "GetDashboard", err)
	}
	return res, nil
}
