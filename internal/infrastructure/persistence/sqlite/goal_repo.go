package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alem-hub/mastery-tracker/internal/domain/goal"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

const goalColumns = `id, user_id, subject, topic, target_level, is_active, created_at, deactivated_at`

// Create implements goal.Repository.
func (s *Store) Create(ctx context.Context, g goal.LearningGoal) (goal.LearningGoal, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goal.LearningGoal{}, false, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanGoal(tx.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM learning_goals
		WHERE user_id = ? AND subject = ? AND topic = ? AND is_active = 1`,
		g.UserID.String(), g.Subject, g.Topic))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return goal.LearningGoal{}, false, fmt.Errorf("sqlite: find active goal: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO learning_goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID.String(), g.Subject, g.Topic, string(g.TargetLevel), boolInt(g.IsActive),
		toNanos(g.CreatedAt), nullableNanos(g.DeactivatedAt))
	if err != nil {
		return goal.LearningGoal{}, false, fmt.Errorf("sqlite: insert goal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return goal.LearningGoal{}, false, fmt.Errorf("sqlite: commit: %w", err)
	}
	return g, true, nil
}

// GetByID implements goal.Repository.
func (s *Store) GetByID(ctx context.Context, userID shared.UserID, id string) (goal.LearningGoal, error) {
	g, err := scanGoal(s.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM learning_goals WHERE user_id = ? AND id = ?`, userID.String(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return goal.LearningGoal{}, shared.NotFoundError("goal", "GetByID", fmt.Sprintf("goal %s not found", id))
	}
	if err != nil {
		return goal.LearningGoal{}, fmt.Errorf("sqlite: get goal: %w", err)
	}
	return g, nil
}

// List implements goal.Repository.
func (s *Store) List(ctx context.Context, userID shared.UserID, activeOnly bool) ([]goal.LearningGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM learning_goals WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: list goals: %w", err)
	}
	defer rows.Close()

	out := []goal.LearningGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Update implements goal.Repository.
func (s *Store) Update(ctx context.Context, g goal.LearningGoal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE learning_goals SET is_active = ?, deactivated_at = ? WHERE user_id = ? AND id = ?`,
		boolInt(g.IsActive), nullableNanos(g.DeactivatedAt), g.UserID.String(), g.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.NotFoundError("goal", "Update", fmt.Sprintf("goal %s not found", g.ID))
	}
	return nil
}

func scanGoal(row scanner) (goal.LearningGoal, error) {
	var (
		g              goal.LearningGoal
		userID, target string
		active         int
		createdAt      int64
		deactivatedAt  sql.NullInt64
	)
	if err := row.Scan(&g.ID, &userID, &g.Subject, &g.Topic, &target, &active, &createdAt, &deactivatedAt); err != nil {
		return goal.LearningGoal{}, err
	}
	g.UserID = shared.UserID(userID)
	g.TargetLevel = mastery.Level(target)
	g.IsActive = active == 1
	g.CreatedAt = fromNanos(createdAt)
	g.DeactivatedAt = timePtr(deactivatedAt)
	return g, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
