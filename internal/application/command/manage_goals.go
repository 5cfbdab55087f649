package command

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING GOAL COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// CreateGoalCommand declares a target level for a topic.
type CreateGoalCommand struct {
	UserID  string
	Subject string
	Topic   string

	// TargetLevel is learning, practicing or mastered. Empty means mastered.
	TargetLevel string
}

// Validate validates the command.
func (c CreateGoalCommand) Validate() error {
	if _, _, err := parseTarget(c.UserID, c.Subject, c.Topic); err != nil {
		return err
	}
	if c.TargetLevel != "" {
		l, err := mastery.ParseLevel(c.TargetLevel)
		if err != nil || l == mastery.LevelNotStarted {
			return shared.ValidationError("goal", "CreateGoal", "target_level must be learning, practicing or mastered")
		}
	}
	return nil
}

// CreateGoalResult contains the stored goal.
type CreateGoalResult struct {
	Goal goal.LearningGoal

	// Created is false when an active goal for the topic already existed.
	Created bool
}

// GoalHandlerConfig configures the goal handlers.
type GoalHandlerConfig struct {
	Now   func() time.Time
	NewID func() string
}

// DefaultGoalHandlerConfig returns default configuration.
func DefaultGoalHandlerConfig() GoalHandlerConfig {
	return GoalHandlerConfig{Now: time.Now, NewID: uuid.NewString}
}

func (c GoalHandlerConfig) withDefaults() GoalHandlerConfig {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return c
}

// CreateGoalHandler handles the CreateGoalCommand.
type CreateGoalHandler struct {
	goals     goal.Repository
	publisher shared.EventPublisher
	logger    *logger.Logger
	config    GoalHandlerConfig
}

// NewCreateGoalHandler creates a new CreateGoalHandler.
func NewCreateGoalHandler(goals goal.Repository, publisher shared.EventPublisher, log *logger.Logger, config GoalHandlerConfig) *CreateGoalHandler {
	if log == nil {
		log = logger.Default()
	}
	return &CreateGoalHandler{
		goals:     goals,
		publisher: publisher,
		logger:    log.With(logger.Component("goals")),
		config:    config.withDefaults(),
	}
}

// Handle executes the create goal command.
func (h *CreateGoalHandler) Handle(ctx context.Context, cmd CreateGoalCommand) (*CreateGoalResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	userID, key, _ := parseTarget(cmd.UserID, cmd.Subject, cmd.Topic)

	var target mastery.Level
	if strings.TrimSpace(cmd.TargetLevel) != "" {
		target, _ = mastery.ParseLevel(cmd.TargetLevel)
	}

	g, err := goal.New(h.config.NewID(), userID, key, target, h.config.Now())
	if err != nil {
		return nil, err
	}

	stored, created, err := h.goals.Create(ctx, g)
	if err != nil {
		return nil, shared.StorageError("goal", "CreateGoal", err)
	}

	if created {
		h.logger.Info("learning goal created",
			logger.UserID(userID.String()),
			logger.Subject(key.Subject),
			logger.Topic(key.Topic),
			logger.String("target_level", stored.TargetLevel.String()),
		)
		publishGoalEvent(ctx, h.publisher, h.logger, shared.EventGoalCreated, stored, h.config.Now())
	}

	return &CreateGoalResult{Goal: stored, Created: created}, nil
}

// DeactivateGoalCommand retires a goal.
type DeactivateGoalCommand struct {
	UserID string
	GoalID string
}

// Validate validates the command.
func (c DeactivateGoalCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(c.GoalID) == "" {
		return shared.ValidationError("goal", "DeactivateGoal", "goal id is required")
	}
	return nil
}

// DeactivateGoalHandler handles the DeactivateGoalCommand.
type DeactivateGoalHandler struct {
	goals     goal.Repository
	publisher shared.EventPublisher
	logger    *logger.Logger
	config    GoalHandlerConfig
}

// NewDeactivateGoalHandler creates a new DeactivateGoalHandler.
func NewDeactivateGoalHandler(goals goal.Repository, publisher shared.EventPublisher, log *logger.Logger, config GoalHandlerConfig) *DeactivateGoalHandler {
	if log == nil {
		log = logger.Default()
	}
	return &DeactivateGoalHandler{
		goals:     goals,
		publisher: publisher,
		logger:    log.With(logger.Component("goals")),
		config:    config.withDefaults(),
	}
}

// Handle executes the deactivate goal command. A missing goal, or one owned
// by another user, is a not-found error.
func (h *DeactivateGoalHandler) Handle(ctx context.Context, cmd DeactivateGoalCommand) (*goal.LearningGoal, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	userID, _ := shared.NewUserID(cmd.UserID)

	g, err := h.goals.GetByID(ctx, userID, strings.TrimSpace(cmd.GoalID))
	if err != nil {
		return nil, shared.StorageError("goal", "DeactivateGoal", err)
	}
	if !g.IsActive {
		return &g, nil
	}

	g.Deactivate(h.config.Now())
	if err := h.goals.Update(ctx, g); err != nil {
		return nil, shared.StorageError("goal", "DeactivateGoal", err)
	}

	h.logger.Info("learning goal deactivated", logger.UserID(userID.String()), logger.String("goal_id", g.ID))
	publishGoalEvent(ctx, h.publisher, h.logger, shared.EventGoalDeactivated, g, h.config.Now())
	return &g, nil
}

func publishGoalEvent(ctx context.Context, publisher shared.EventPublisher, log *logger.Logger, t shared.EventType, g goal.LearningGoal, at time.Time) {
	if publisher == nil {
		return
	}
	err := publisher.Publish(ctx, shared.GoalChangedEvent{
		BaseEvent: shared.NewBaseEvent(t, g.UserID.String(), at),
		GoalID:    g.ID,
		Subject:   g.Subject,
		Topic:     g.Topic,
	})
	if err != nil {
		log.Warn("failed to publish event", logger.String("event_type", string(t)), logger.Err(err))
	}
}
