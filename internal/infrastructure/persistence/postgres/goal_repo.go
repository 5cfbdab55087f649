package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

const goalColumns = `id, user_id, subject, topic, target_level, is_active, created_at, deactivated_at`

// GoalRepository implements goal.Repository.
type GoalRepository struct {
	conn *Connection
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection) *GoalRepository {
	return &GoalRepository{conn: conn}
}

// Create inserts g unless an active goal for the topic exists, in which
// case the existing goal is returned. The partial unique index resolves
// concurrent creates.
func (r *GoalRepository) Create(ctx context.Context, g goal.LearningGoal) (goal.LearningGoal, bool, error) {
	tag, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO learning_goals (`+goalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, subject, topic) WHERE is_active DO NOTHING`,
		g.ID, g.UserID.String(), g.Subject, g.Topic, string(g.TargetLevel), g.IsActive, g.CreatedAt, g.DeactivatedAt)
	if err != nil {
		return goal.LearningGoal{}, false, fmt.Errorf("postgres: insert goal: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return g, true, nil
	}

	existing, err := scanGoal(r.conn.Pool().QueryRow(ctx,
		`SELECT `+goalColumns+` FROM learning_goals
		WHERE user_id = $1 AND subject = $2 AND topic = $3 AND is_active`,
		g.UserID.String(), g.Subject, g.Topic))
	if err != nil {
		return goal.LearningGoal{}, false, fmt.Errorf("postgres: find active goal: %w", err)
	}
	return existing, false, nil
}

// GetByID implements goal.Repository.
func (r *GoalRepository) GetByID(ctx context.Context, userID shared.UserID, id string) (goal.LearningGoal, error) {
	g, err := scanGoal(r.conn.Pool().QueryRow(ctx,
		`SELECT `+goalColumns+` FROM learning_goals WHERE user_id = $1 AND id = $2`, userID.String(), id))
	if IsNoRows(err) {
		return goal.LearningGoal{}, shared.NotFoundError("goal", "GetByID", fmt.Sprintf("goal %s not found", id))
	}
	if err != nil {
		return goal.LearningGoal{}, fmt.Errorf("postgres: get goal: %w", err)
	}
	return g, nil
}

// List implements goal.Repository.
func (r *GoalRepository) List(ctx context.Context, userID shared.UserID, activeOnly bool) ([]goal.LearningGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM learning_goals WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.conn.Pool().Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: list goals: %w", err)
	}
	defer rows.Close()

	out := []goal.LearningGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Update implements goal.Repository.
func (r *GoalRepository) Update(ctx context.Context, g goal.LearningGoal) error {
	tag, err := r.conn.Pool().Exec(ctx,
		`UPDATE learning_goals SET is_active = $1, deactivated_at = $2 WHERE user_id = $3 AND id = $4`,
		g.IsActive, g.DeactivatedAt, g.UserID.String(), g.ID)
	if err != nil {
		return fmt.Errorf("postgres: update goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundError("goal", "Update", fmt.Sprintf("goal %s not found", g.ID))
	}
	return nil
}

func scanGoal(row pgx.Row) (goal.LearningGoal, error) {
	var (
		g              goal.LearningGoal
		userID, target string
	)
	if err := row.Scan(&g.ID, &userID, &g.Subject, &g.Topic, &target, &g.IsActive, &g.CreatedAt, &g.DeactivatedAt); err != nil {
		return goal.LearningGoal{}, err
	}
	g.UserID = shared.UserID(userID)
	g.TargetLevel = mastery.Level(target)
	g.CreatedAt = g.CreatedAt.UTC()
	return g, nil
}
