package user

import "context"

// Store defines the interface for user data access.
type Store interface {
	// Create creates a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update persists user mutations, including streak counters.
	Update(ctx context.Context, user *User) error

	// ListAutoCommitCandidates returns active users of the given tier that
	// have auto-commits enabled and an active repository selected.
	ListAutoCommitCandidates(ctx context.Context, tier Tier) ([]*User, error)
}
