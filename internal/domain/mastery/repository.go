package mastery

import (
	"context"

	"github.com/alem-hub/mastery-tracker/internal/domain/activity"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

// Repository reads mastery records outside of a write transaction.
type Repository interface {
	// Get returns the record for key or a not-found error.
	Get(ctx context.Context, userID shared.UserID, key shared.TopicKey) (Record, error)

	// ListByUser returns the user's records, optionally limited to one
	// subject, ordered by subject then topic.
	ListByUser(ctx context.Context, userID shared.UserID, subject string) ([]Record, error)
}

// Tx is the transactional view used by the event recorder. Every call runs
// inside the same storage transaction.
type Tx interface {
	// LockOrCreate returns the record for key with its row locked for the
	// rest of the transaction, inserting initial if none exists yet.
	LockOrCreate(ctx context.Context, initial Record) (Record, error)

	// Save writes back a record previously returned by LockOrCreate.
	// Implementations bump Version and fail with a storage error if the
	// record changed underneath.
	Save(ctx context.Context, r Record) (Record, error)

	// AppendEvent appends to the study event log.
	AppendEvent(ctx context.Context, e activity.StudyEvent) error
}

// UnitOfWork runs fn inside one transaction: fn returning nil commits,
// anything else rolls back both the event append and the record update.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
