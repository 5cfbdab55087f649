package eventhandler

import (
	"context"
	"fmt"

	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL CHANGED HANDLER
// Logs level transitions and reports when one reaches an active goal's
// target. Goals are left as they are; deactivation is the user's call.
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelChangedHandler handles progress.level_changed.
type OnLevelChangedHandler struct {
	goals  goal.Repository
	logger *logger.Logger
}

// NewOnLevelChangedHandler creates a new handler. goals may be nil.
func NewOnLevelChangedHandler(goals goal.Repository, log *logger.Logger) *OnLevelChangedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnLevelChangedHandler{
		goals:  goals,
		logger: log.With(logger.String("handler", "on_level_changed")),
	}
}

// Handle implements shared.EventHandler.
func (h *OnLevelChangedHandler) Handle(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.LevelChangedEvent)
	if !ok {
		h.logger.Warn("received unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	newLevel := mastery.Level(e.NewLevel)
	h.logger.Info("mastery level changed",
		logger.UserID(e.AggregateID()),
		logger.Subject(e.Subject),
		logger.Topic(e.Topic),
		logger.String("old_level", e.OldLevel),
		logger.String("new_level", e.NewLevel),
	)

	if h.goals == nil {
		return nil
	}
	active, err := h.goals.List(ctx, shared.UserID(e.AggregateID()), true)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	key := shared.TopicKey{Subject: e.Subject, Topic: e.Topic}
	for _, g := range active {
		if g.Key() != key || !g.ReachedBy(newLevel) {
			continue
		}
		h.logger.Info("learning goal reached",
			logger.UserID(e.AggregateID()),
			logger.String("goal_id", g.ID),
			logger.Subject(g.Subject),
			logger.Topic(g.Topic),
			logger.String("target_level", g.TargetLevel.String()),
		)
	}
	return nil
}

// Register subscribes the handler to level changes.
func (h *OnLevelChangedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventLevelChanged, h.Handle)
}
