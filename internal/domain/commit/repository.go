package commit

import (
	"context"
	"time"
)

// Store defines the interface for commit record persistence. It owns the
// idempotency queries the scheduler and orchestrator rely on.
type Store interface {
	// Create persists a new record.
	Create(ctx context.Context, r *Record) error

	// Update persists record mutations (status, error, remote metadata).
	Update(ctx context.Context, r *Record) error

	// GetByID retrieves a record by ID.
	GetByID(ctx context.Context, id string) (*Record, error)

	// HasSuccessForDay reports whether the user already has a success
	// record of the given kind whose scheduled date falls on day.
	HasSuccessForDay(ctx context.Context, userID int64, kind Kind, day time.Time) (bool, error)

	// ListRetryable returns failed records with retry budget left, plus
	// pending records older than staleAfter, which the sweep treats as
	// failed attempts.
	ListRetryable(ctx context.Context, staleAfter time.Duration) ([]*Record, error)

	// ListByUser returns records for a user, newest first.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Record, int64, error)

	// DeleteTerminalOlderThan removes success/failed records older than
	// the cutoff. Returns the number of rows removed.
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteForUserRange removes a user's records whose scheduled date
	// falls within [from, to]. Used by the force regeneration path.
	DeleteForUserRange(ctx context.Context, userID int64, from, to time.Time) (int64, error)
}
