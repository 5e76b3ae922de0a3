package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
)

// UserRepository implements user.Store on sqlite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, full_name, tier, is_subscribed, trial_start, trial_end,
	is_active, settings, total_commits, current_streak, longest_streak, last_commit_date,
	created_at, updated_at`

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	settings, err := json.Marshal(u.Settings)
	if err != nil {
		settings = []byte("{}")
	}

	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, email, full_name, tier, is_subscribed, trial_start, trial_end,
			is_active, settings, total_commits, current_streak, longest_streak, last_commit_date,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.FullName, string(u.Tier), u.IsSubscribed, u.TrialStart, u.TrialEnd,
		u.IsActive, string(settings), u.TotalCommits, u.CurrentStreak, u.LongestStreak,
		u.LastCommitDate, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new user id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID, including the active repository.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scanUser(ctx, row)
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return r.scanUser(ctx, row)
}

// Update persists user mutations, including streak counters.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	settings, err := json.Marshal(u.Settings)
	if err != nil {
		settings = []byte("{}")
	}

	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, full_name = ?, tier = ?, is_subscribed = ?, trial_start = ?, trial_end = ?,
			is_active = ?, settings = ?, total_commits = ?, current_streak = ?, longest_streak = ?,
			last_commit_date = ?, updated_at = ?
		WHERE id = ?`,
		u.Email, u.FullName, string(u.Tier), u.IsSubscribed, u.TrialStart, u.TrialEnd,
		u.IsActive, string(settings), u.TotalCommits, u.CurrentStreak, u.LongestStreak,
		u.LastCommitDate, now, u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("user")
	}
	u.UpdatedAt = now
	return nil
}

// ListAutoCommitCandidates returns active users of the given tier with
// auto-commits enabled and an active repository selected.
func (r *UserRepository) ListAutoCommitCandidates(ctx context.Context, tier user.Tier) ([]*user.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE tier = ? AND is_active = TRUE
		  AND json_extract(settings, '$.enable_auto_commits') = TRUE
		  AND EXISTS (SELECT 1 FROM repositories WHERE user_id = users.id AND is_active = TRUE)
		ORDER BY id`,
		string(tier),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-commit candidates: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := r.scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}

	for _, u := range users {
		repo, err := r.activeRepository(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		u.ActiveRepo = repo
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *UserRepository) scanUser(ctx context.Context, row rowScanner) (*user.User, error) {
	u, err := r.scanUserRow(row)
	if err != nil {
		return nil, err
	}
	repo, err := r.activeRepository(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.ActiveRepo = repo
	return u, nil
}

func (r *UserRepository) scanUserRow(row rowScanner) (*user.User, error) {
	var u user.User
	var tier string
	var fullName, settingsJSON sql.NullString
	var trialStart, trialEnd, lastCommit sql.NullTime

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &fullName, &tier, &u.IsSubscribed,
		&trialStart, &trialEnd, &u.IsActive, &settingsJSON,
		&u.TotalCommits, &u.CurrentStreak, &u.LongestStreak, &lastCommit,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Tier = user.Tier(tier)
	u.FullName = fullName.String
	if trialStart.Valid {
		u.TrialStart = &trialStart.Time
	}
	if trialEnd.Valid {
		u.TrialEnd = &trialEnd.Time
	}
	if lastCommit.Valid {
		u.LastCommitDate = &lastCommit.Time
	}
	if settingsJSON.Valid && settingsJSON.String != "" {
		if err := json.Unmarshal([]byte(settingsJSON.String), &u.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode user settings: %w", err)
		}
	}
	return &u, nil
}

func (r *UserRepository) activeRepository(ctx context.Context, userID int64) (*user.Repository, error) {
	var repo user.Repository
	var url sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, full_name, url, file_path, is_active
		FROM repositories
		WHERE user_id = ? AND is_active = TRUE`,
		userID,
	).Scan(&repo.ID, &repo.Name, &repo.FullName, &url, &repo.FilePath, &repo.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active repository: %w", err)
	}
	repo.URL = url.String
	return &repo, nil
}

// SetActiveRepository inserts or activates a repository for the user,
// deactivating any previously active one first.
func (r *UserRepository) SetActiveRepository(ctx context.Context, userID int64, repo *user.Repository) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE repositories SET is_active = FALSE WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to deactivate repositories: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO repositories (user_id, name, full_name, url, file_path, is_active)
		VALUES (?, ?, ?, ?, ?, TRUE)`,
		userID, repo.Name, repo.FullName, repo.URL, repo.FilePath,
	)
	if err != nil {
		return fmt.Errorf("failed to insert repository: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new repository id: %w", err)
	}
	repo.ID = id
	repo.IsActive = true

	return tx.Commit()
}
