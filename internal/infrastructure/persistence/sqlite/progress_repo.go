package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

const recordColumns = `user_id, subject, topic, level, confidence, last_practiced_at,
	attempt_count, study_seconds, version, created_at, updated_at`

const eventColumns = `id, user_id, subject, topic, kind, score, duration_seconds, occurred_at, recorded_at`

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// Get implements mastery.Repository.
func (s *Store) Get(ctx context.Context, userID shared.UserID, key shared.TopicKey) (mastery.Record, error) {
	r, err := getRecord(ctx, s.db, userID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return mastery.Record{}, shared.NotFoundError("mastery", "Get",
			fmt.Sprintf("no progress recorded for %s", key))
	}
	if err != nil {
		return mastery.Record{}, fmt.Errorf("sqlite: get record: %w", err)
	}
	return r, nil
}

// ListByUser implements mastery.Repository.
func (s *Store) ListByUser(ctx context.Context, userID shared.UserID, subject string) ([]mastery.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM mastery_records WHERE user_id = ?`
	args := []any{userID.String()}
	if subject != "" {
		query += ` AND subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY subject, topic`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list records: %w", err)
	}
	defer rows.Close()

	out := []mastery.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func getRecord(ctx context.Context, q execer, userID shared.UserID, key shared.TopicKey) (mastery.Record, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM mastery_records WHERE user_id = ? AND subject = ? AND topic = ?`,
		userID.String(), key.Subject, key.Topic)
	return scanRecord(row)
}

func scanRecord(row scanner) (mastery.Record, error) {
	var (
		r                    mastery.Record
		userID, level        string
		last                 sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&userID, &r.Subject, &r.Topic, &level, &r.Confidence, &last,
		&r.AttemptCount, &r.StudySeconds, &r.Version, &createdAt, &updatedAt); err != nil {
		return mastery.Record{}, err
	}
	r.UserID = shared.UserID(userID)
	r.Level = mastery.Level(level)
	r.LastPracticedAt = timePtr(last)
	r.CreatedAt = fromNanos(createdAt)
	r.UpdatedAt = fromNanos(updatedAt)
	return r, nil
}

// recordTx is the mastery.Tx over one SQLite transaction.
type recordTx struct {
	tx *sql.Tx
}

// LockOrCreate inserts initial when absent, then reads the row back. The
// single open connection already serializes writers, so no explicit lock
// is taken.
func (t *recordTx) LockOrCreate(ctx context.Context, initial mastery.Record) (mastery.Record, error) {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO mastery_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, subject, topic) DO NOTHING`,
		initial.UserID.String(), initial.Subject, initial.Topic, string(initial.Level), initial.Confidence,
		nullableNanos(initial.LastPracticedAt), initial.AttemptCount, initial.StudySeconds, initial.Version,
		toNanos(initial.CreatedAt), toNanos(initial.UpdatedAt))
	if err != nil {
		return mastery.Record{}, fmt.Errorf("sqlite: insert record: %w", err)
	}

	r, err := getRecord(ctx, t.tx, initial.UserID, initial.Key())
	if err != nil {
		return mastery.Record{}, fmt.Errorf("sqlite: lock record: %w", err)
	}
	return r, nil
}

// Save writes r if its version is unchanged and returns it with the bumped version.
func (t *recordTx) Save(ctx context.Context, r mastery.Record) (mastery.Record, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE mastery_records
		SET level = ?, confidence = ?, last_practiced_at = ?, attempt_count = ?,
			study_seconds = ?, updated_at = ?, version = version + 1
		WHERE user_id = ? AND subject = ? AND topic = ? AND version = ?`,
		string(r.Level), r.Confidence, nullableNanos(r.LastPracticedAt), r.AttemptCount,
		r.StudySeconds, toNanos(r.UpdatedAt),
		r.UserID.String(), r.Subject, r.Topic, r.Version)
	if err != nil {
		return mastery.Record{}, fmt.Errorf("sqlite: save record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mastery.Record{}, fmt.Errorf("sqlite: save record: %w", err)
	}
	if n == 0 {
		return mastery.Record{}, shared.ErrConcurrentModification
	}
	r.Version++
	return r, nil
}

// AppendEvent inserts into the study event log.
func (t *recordTx) AppendEvent(ctx context.Context, e activity.StudyEvent) error {
	var score sql.NullFloat64
	if e.Score != nil {
		score = sql.NullFloat64{Float64: *e.Score, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO study_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID.String(), e.Subject, e.Topic, string(e.Kind), score, e.DurationSeconds,
		toNanos(e.OccurredAt), toNanos(e.RecordedAt))
	if err != nil {
		return fmt.Errorf("sqlite: append event: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDY EVENTS
// ══════════════════════════════════════════════════════════════════════════════

func eventWhere(userID shared.UserID, f activity.ListFilter) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{userID.String()}
	if !f.Since.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, toNanos(f.Since))
	}
	if f.Subject != "" {
		conds = append(conds, "subject = ?")
		args = append(args, f.Subject)
	}
	if f.Topic != "" {
		conds = append(conds, "topic = ?")
		args = append(args, f.Topic)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEvents implements activity.Repository.
func (s *Store) ListEvents(ctx context.Context, userID shared.UserID, filter activity.ListFilter) ([]activity.StudyEvent, error) {
	where, args := eventWhere(userID, filter)
	query := `SELECT ` + eventColumns + ` FROM study_events` + where + ` ORDER BY occurred_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list events: %w", err)
	}
	defer rows.Close()

	out := []activity.StudyEvent{}
	for rows.Next() {
		var (
			e                      activity.StudyEvent
			userID, kind           string
			score                  sql.NullFloat64
			occurredAt, recordedAt int64
		)
		if err := rows.Scan(&e.ID, &userID, &e.Subject, &e.Topic, &kind, &score,
			&e.DurationSeconds, &occurredAt, &recordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		e.UserID = shared.UserID(userID)
		e.Kind = activity.Kind(kind)
		if score.Valid {
			v := score.Float64
			e.Score = &v
		}
		e.OccurredAt = fromNanos(occurredAt)
		e.RecordedAt = fromNanos(recordedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEvents implements activity.Repository.
func (s *Store) CountEvents(ctx context.Context, userID shared.UserID, filter activity.ListFilter) (int, error) {
	where, args := eventWhere(userID, filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM study_events`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count events: %w", err)
	}
	return n, nil
}

// ListEventTimes implements activity.Repository.
func (s *Store) ListEventTimes(ctx context.Context, userID shared.UserID) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT occurred_at FROM study_events WHERE user_id = ? ORDER BY occurred_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: list event times: %w", err)
	}
	defer rows.Close()

	out := []time.Time{}
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("sqlite: scan event time: %w", err)
		}
		out = append(out, fromNanos(n))
	}
	return out, rows.Err()
}
