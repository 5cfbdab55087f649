package query

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HEATMAP QUERY
// Groups the user's records into subject -> topic -> level, decayed as of now.
// ══════════════════════════════════════════════════════════════════════════════

// GetHeatmapQuery contains parameters for the heatmap.
type GetHeatmapQuery struct {
	UserID string

	// Subject limits the heatmap to one subject (empty = all).
	Subject string
}

// Validate validates the query.
func (q *GetHeatmapQuery) Validate() error {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return err
	}
	q.Subject = strings.TrimSpace(q.Subject)
	if len(q.Subject) > shared.MaxNameLength {
		return shared.ValidationError("mastery", "GetHeatmap", "subject is too long")
	}
	return nil
}

// GetHeatmapResult contains the heatmap.
type GetHeatmapResult struct {
	Heatmap     mastery.Heatmap `json:"heatmap"`
	Subject     string          `json:"subject,omitempty"`
	Cached      bool            `json:"cached"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// GetHeatmapHandler handles GetHeatmapQuery.
type GetHeatmapHandler struct {
	records mastery.Repository
	cache   HeatmapCache
	config  Config
}

// NewGetHeatmapHandler creates a new handler. cache may be nil.
func NewGetHeatmapHandler(records mastery.Repository, cache HeatmapCache, config Config) *GetHeatmapHandler {
	return &GetHeatmapHandler{records: records, cache: cache, config: config.withDefaults()}
}

// Handle executes the query.
func (h *GetHeatmapHandler) Handle(ctx context.Context, q GetHeatmapQuery) (*GetHeatmapResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	userID, _ := shared.NewUserID(q.UserID)

	ctx, span := startSpan(ctx, "GetHeatmap", userID)
	defer span.End()

	now := h.config.Now().UTC()
	var generation int64
	if h.cache != nil {
		var (
			hm mastery.Heatmap
			ok bool
		)
		if hm, generation, ok = h.cache.Get(ctx, userID, q.Subject); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &GetHeatmapResult{Heatmap: hm, Subject: q.Subject, Cached: true, GeneratedAt: hm.BuiltAt}, nil
		}
	}

	records, err := h.records.ListByUser(ctx, userID, q.Subject)
	if err != nil {
		return nil, fail(span, "mastery", "GetHeatmap", err)
	}

	hm := h.config.Policy.BuildHeatmap(records, q.Subject, now)
	if h.cache != nil {
		h.cache.Set(ctx, userID, q.Subject, generation, hm)
	}
	return &GetHeatmapResult{Heatmap: hm, Subject: q.Subject, GeneratedAt: hm.BuiltAt}, nil
}
