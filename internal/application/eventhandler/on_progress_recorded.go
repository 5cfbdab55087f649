// Package eventhandler contains subscribers for domain events. They run
// synchronously after a write has committed; a failing subscriber is
// logged and never undoes the write.
package eventhandler

import (
	"context"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESS RECORDED HANDLER
// Drops the user's cached heatmaps so the next read sees the new record.
// ═══════════════════════════════════════════════════════════════════════════

// HeatmapInvalidator removes cached heatmaps of a user.
type HeatmapInvalidator interface {
	Invalidate(ctx context.Context, userID shared.UserID) error
}

// OnProgressRecordedHandler handles assessment and study session events.
type OnProgressRecordedHandler struct {
	cache  HeatmapInvalidator
	logger *logger.Logger
}

// NewOnProgressRecordedHandler creates a new handler. A nil cache makes it a no-op.
func NewOnProgressRecordedHandler(cache HeatmapInvalidator, log *logger.Logger) *OnProgressRecordedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnProgressRecordedHandler{
		cache:  cache,
		logger: log.With(logger.String("handler", "on_progress_recorded")),
	}
}

// Handle implements shared.EventHandler.
func (h *OnProgressRecordedHandler) Handle(ctx context.Context, event shared.Event) error {
	if h.cache == nil {
		return nil
	}
	userID := shared.UserID(event.AggregateID())
	if err := h.cache.Invalidate(ctx, userID); err != nil {
		// Entries expire on their own TTL, so a failed invalidation is not fatal.
		h.logger.Warn("heatmap invalidation failed", logger.UserID(userID.String()), logger.Err(err))
	}
	return nil
}

// Register subscribes the handler to both progress event types.
func (h *OnProgressRecordedHandler) Register(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventAssessmentRecorded, h.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventStudySessionRecorded, h.Handle)
}
