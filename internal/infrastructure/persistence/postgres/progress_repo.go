package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

const recordColumns = `user_id, subject, topic, level, confidence, last_practiced_at,
	attempt_count, study_seconds, version, created_at, updated_at`

const eventColumns = `id, user_id, subject, topic, kind, score, duration_seconds, occurred_at, recorded_at`

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// Implements mastery.Repository, mastery.UnitOfWork and activity.Repository.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository stores mastery records and the study event log.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// WithinTx implements mastery.UnitOfWork.
func (r *ProgressRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx mastery.Tx) error) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &progressTx{tx: tx})
	})
}

// Get implements mastery.Repository.
func (r *ProgressRepository) Get(ctx context.Context, userID shared.UserID, key shared.TopicKey) (mastery.Record, error) {
	rec, err := scanRecord(r.conn.Pool().QueryRow(ctx,
		`SELECT `+recordColumns+` FROM mastery_records WHERE user_id = $1 AND subject = $2 AND topic = $3`,
		userID.String(), key.Subject, key.Topic))
	if IsNoRows(err) {
		return mastery.Record{}, shared.NotFoundError("mastery", "Get", fmt.Sprintf("no progress recorded for %s", key))
	}
	if err != nil {
		return mastery.Record{}, fmt.Errorf("postgres: get record: %w", err)
	}
	return rec, nil
}

// ListByUser implements mastery.Repository.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID shared.UserID, subject string) ([]mastery.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM mastery_records WHERE user_id = $1`
	args := []any{userID.String()}
	if subject != "" {
		query += ` AND subject = $2`
		args = append(args, subject)
	}
	query += ` ORDER BY subject, topic`

	rows, err := r.conn.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list records: %w", err)
	}
	defer rows.Close()

	out := []mastery.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (mastery.Record, error) {
	var (
		rec           mastery.Record
		userID, level string
	)
	err := row.Scan(&userID, &rec.Subject, &rec.Topic, &level, &rec.Confidence, &rec.LastPracticedAt,
		&rec.AttemptCount, &rec.StudySeconds, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return mastery.Record{}, err
	}
	rec.UserID = shared.UserID(userID)
	rec.Level = mastery.Level(level)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if rec.LastPracticedAt != nil {
		t := rec.LastPracticedAt.UTC()
		rec.LastPracticedAt = &t
	}
	return rec, nil
}

// progressTx is the mastery.Tx over one pgx transaction.
type progressTx struct {
	tx pgx.Tx
}

// LockOrCreate inserts initial when absent and then locks the row.
func (t *progressTx) LockOrCreate(ctx context.Context, initial mastery.Record) (mastery.Record, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO mastery_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, subject, topic) DO NOTHING`,
		initial.UserID.String(), initial.Subject, initial.Topic, string(initial.Level), initial.Confidence,
		initial.LastPracticedAt, initial.AttemptCount, initial.StudySeconds, initial.Version,
		initial.CreatedAt, initial.UpdatedAt)
	if err != nil {
		return mastery.Record{}, fmt.Errorf("postgres: insert record: %w", err)
	}

	rec, err := scanRecord(t.tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM mastery_records
		WHERE user_id = $1 AND subject = $2 AND topic = $3
		FOR UPDATE`,
		initial.UserID.String(), initial.Subject, initial.Topic))
	if err != nil {
		return mastery.Record{}, fmt.Errorf("postgres: lock record: %w", err)
	}
	return rec, nil
}

// Save writes back a locked record. The version predicate catches writes
// that bypassed LockOrCreate.
func (t *progressTx) Save(ctx context.Context, rec mastery.Record) (mastery.Record, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE mastery_records
		SET level = $1, confidence = $2, last_practiced_at = $3, attempt_count = $4,
			study_seconds = $5, updated_at = $6, version = version + 1
		WHERE user_id = $7 AND subject = $8 AND topic = $9 AND version = $10`,
		string(rec.Level), rec.Confidence, rec.LastPracticedAt, rec.AttemptCount,
		rec.StudySeconds, rec.UpdatedAt,
		rec.UserID.String(), rec.Subject, rec.Topic, rec.Version)
	if err != nil {
		return mastery.Record{}, fmt.Errorf("postgres: save record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mastery.Record{}, shared.ErrConcurrentModification
	}
	rec.Version++
	return rec, nil
}

// AppendEvent inserts into the study event log.
func (t *progressTx) AppendEvent(ctx context.Context, e activity.StudyEvent) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO study_events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID.String(), e.Subject, e.Topic, string(e.Kind), e.Score, e.DurationSeconds, e.OccurredAt, e.RecordedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ValidationError("activity", "AppendEvent", fmt.Sprintf("event %s already recorded", e.ID))
		}
		return fmt.Errorf("postgres: append event: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDY EVENTS
// ══════════════════════════════════════════════════════════════════════════════

func eventWhere(userID shared.UserID, f activity.ListFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{userID.String()}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.Since.IsZero() {
		add("occurred_at >= $%d", f.Since)
	}
	if f.Subject != "" {
		add("subject = $%d", f.Subject)
	}
	if f.Topic != "" {
		add("topic = $%d", f.Topic)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEvents implements activity.Repository.
func (r *ProgressRepository) ListEvents(ctx context.Context, userID shared.UserID, filter activity.ListFilter) ([]activity.StudyEvent, error) {
	where, args := eventWhere(userID, filter)
	query := `SELECT ` + eventColumns + ` FROM study_events` + where + ` ORDER BY occurred_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.conn.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	out := []activity.StudyEvent{}
	for rows.Next() {
		var (
			e            activity.StudyEvent
			userID, kind string
		)
		if err := rows.Scan(&e.ID, &userID, &e.Subject, &e.Topic, &kind, &e.Score,
			&e.DurationSeconds, &e.OccurredAt, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		e.UserID = shared.UserID(userID)
		e.Kind = activity.Kind(kind)
		e.OccurredAt = e.OccurredAt.UTC()
		e.RecordedAt = e.RecordedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEvents implements activity.Repository.
func (r *ProgressRepository) CountEvents(ctx context.Context, userID shared.UserID, filter activity.ListFilter) (int, error) {
	where, args := eventWhere(userID, filter)
	var n int
	if err := r.conn.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM study_events`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count events: %w", err)
	}
	return n, nil
}

// ListEventTimes implements activity.Repository.
func (r *ProgressRepository) ListEventTimes(ctx context.Context, userID shared.UserID) ([]time.Time, error) {
	rows, err := r.conn.Pool().Query(ctx,
		`SELECT occurred_at FROM study_events WHERE user_id = $1 ORDER BY occurred_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: list event times: %w", err)
	}
	times, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (time.Time, error) {
		var t time.Time
		err := row.Scan(&t)
		return t.UTC(), err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan event times: %w", err)
	}
	return times, nil
}
