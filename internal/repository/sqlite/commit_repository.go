package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhatia/commitcanvas/internal/domain/commit"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
)

// CommitRepository implements commit.Store on sqlite.
type CommitRepository struct {
	db *sql.DB
}

// NewCommitRepository creates a new commit record repository.
func NewCommitRepository(db *sql.DB) *CommitRepository {
	return &CommitRepository{db: db}
}

const recordColumns = `id, user_id, repo_full_name, file_path, message, content, content_type,
	status, kind, provenance, scheduled_for, executed_at, remote_sha, remote_url,
	retry_count, max_retries, error_message, error_code, error_details, created_at, updated_at`

// Create persists a new record.
func (r *CommitRepository) Create(ctx context.Context, rec *commit.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.MaxRetries == 0 {
		rec.MaxRetries = commit.DefaultMaxRetries
	}

	errMsg, errCode, errDetails := flattenError(rec.Error)

	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO commit_records (id, user_id, repo_full_name, file_path, message, content,
			content_type, status, kind, provenance, scheduled_for, executed_at, remote_sha,
			remote_url, retry_count, max_retries, error_message, error_code, error_details,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.RepoFullName, rec.FilePath, rec.Message, rec.Content,
		rec.ContentType, string(rec.Status), string(rec.Kind), rec.Trigger, rec.ScheduledFor,
		rec.ExecutedAt, rec.RemoteSHA, rec.RemoteURL, rec.RetryCount, rec.MaxRetries,
		errMsg, errCode, errDetails, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create commit record: %w", err)
	}

	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// Update persists record mutations.
func (r *CommitRepository) Update(ctx context.Context, rec *commit.Record) error {
	errMsg, errCode, errDetails := flattenError(rec.Error)

	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE commit_records
		SET status = ?, executed_at = ?, remote_sha = ?, remote_url = ?, retry_count = ?,
			error_message = ?, error_code = ?, error_details = ?, updated_at = ?
		WHERE id = ?`,
		string(rec.Status), rec.ExecutedAt, rec.RemoteSHA, rec.RemoteURL, rec.RetryCount,
		errMsg, errCode, errDetails, now, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update commit record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("commit record")
	}
	rec.UpdatedAt = now
	return nil
}

// GetByID retrieves a record by ID.
func (r *CommitRepository) GetByID(ctx context.Context, id string) (*commit.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM commit_records WHERE id = ?`, id)
	return scanRecord(row)
}

// HasSuccessForDay reports whether a success record of the given kind is
// already scheduled on the given calendar day. This is the idempotency
// check guarding the daily batch and the elevated window check.
func (r *CommitRepository) HasSuccessForDay(ctx context.Context, userID int64, kind commit.Kind, day time.Time) (bool, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM commit_records
		WHERE user_id = ? AND kind = ? AND status = ?
		  AND scheduled_for >= ? AND scheduled_for < ?`,
		userID, string(kind), string(commit.StatusSuccess), dayStart, dayEnd,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check daily success record: %w", err)
	}
	return count > 0, nil
}

// ListRetryable returns failed records with retry budget left, plus
// pending records older than staleAfter (treated as failed attempts by
// the sweep).
func (r *CommitRepository) ListRetryable(ctx context.Context, staleAfter time.Duration) ([]*commit.Record, error) {
	staleCutoff := time.Now().Add(-staleAfter)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM commit_records
		WHERE (status = ? AND retry_count < max_retries)
		   OR (status = ? AND created_at < ?)
		ORDER BY created_at`,
		string(commit.StatusFailed), string(commit.StatusPending), staleCutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListByUser returns a user's records, newest first.
func (r *CommitRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*commit.Record, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM commit_records WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count commit records: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM commit_records
		WHERE user_id = ?
		ORDER BY scheduled_for DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list commit records: %w", err)
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// DeleteTerminalOlderThan removes success/failed records created before
// the cutoff. Used by the daily retention sweep.
func (r *CommitRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM commit_records
		WHERE status IN (?, ?) AND created_at < ?`,
		string(commit.StatusSuccess), string(commit.StatusFailed), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old commit records: %w", err)
	}
	return res.RowsAffected()
}

// DeleteForUserRange removes a user's records scheduled within [from, to].
func (r *CommitRepository) DeleteForUserRange(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM commit_records
		WHERE user_id = ? AND scheduled_for >= ? AND scheduled_for <= ?`,
		userID, from, to,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete commit records in range: %w", err)
	}
	return res.RowsAffected()
}

func flattenError(e *commit.Error) (msg, code, details sql.NullString) {
	if e == nil {
		return
	}
	msg = sql.NullString{String: e.Message, Valid: true}
	code = sql.NullString{String: e.Code, Valid: true}
	if e.Details != nil {
		if data, err := json.Marshal(e.Details); err == nil {
			details = sql.NullString{String: string(data), Valid: true}
		}
	}
	return
}

func collectRecords(rows *sql.Rows) ([]*commit.Record, error) {
	var records []*commit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commit records: %w", err)
	}
	return records, nil
}

func scanRecord(row rowScanner) (*commit.Record, error) {
	var rec commit.Record
	var status, kind string
	var executedAt sql.NullTime
	var remoteSHA, remoteURL, errMsg, errCode, errDetails sql.NullString

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.RepoFullName, &rec.FilePath, &rec.Message, &rec.Content,
		&rec.ContentType, &status, &kind, &rec.Trigger, &rec.ScheduledFor, &executedAt,
		&remoteSHA, &remoteURL, &rec.RetryCount, &rec.MaxRetries,
		&errMsg, &errCode, &errDetails, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("commit record")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan commit record: %w", err)
	}

	rec.Status = commit.Status(status)
	rec.Kind = commit.Kind(kind)
	if executedAt.Valid {
		rec.ExecutedAt = &executedAt.Time
	}
	rec.RemoteSHA = remoteSHA.String
	rec.RemoteURL = remoteURL.String
	if errMsg.Valid || errCode.Valid {
		recErr := &commit.Error{Message: errMsg.String, Code: errCode.String}
		if errDetails.Valid && errDetails.String != "" {
			var details interface{}
			if err := json.Unmarshal([]byte(errDetails.String), &details); err == nil {
				recErr.Details = details
			}
		}
		rec.Error = recErr
	}
	return &rec, nil
}
