package goal

import (
	"context"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// Repository persists learning goals.
type Repository interface {
	// Create stores a new goal. If the user already has an active goal for
	// the same topic, that goal is returned instead and created is false.
	Create(ctx context.Context, g LearningGoal) (stored LearningGoal, created bool, err error)

	// GetByID returns a goal owned by the user or a not-found error.
	GetByID(ctx context.Context, userID shared.UserID, id string) (LearningGoal, error)

	// List returns the user's goals, newest first. activeOnly drops inactive ones.
	List(ctx context.Context, userID shared.UserID, activeOnly bool) ([]LearningGoal, error)

	// Update persists IsActive and DeactivatedAt of an existing goal.
	Update(ctx context.Context, g LearningGoal) error
}
