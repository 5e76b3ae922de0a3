package commit

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a commit record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusRetrying Status = "retrying"
)

// Kind classifies what produced a commit record.
type Kind string

const (
	KindAuto     Kind = "auto"
	KindManual   Kind = "manual"
	KindRetry    Kind = "retry"
	KindBackfill Kind = "backfill"
	KindPattern  Kind = "pattern"
)

// DefaultMaxRetries bounds the automatic retry sweep per record.
const DefaultMaxRetries = 1

// transitions is the exhaustive status transition table. Anything not
// listed here is illegal (e.g. success -> retrying).
var transitions = map[Status][]Status{
	StatusPending:  {StatusSuccess, StatusFailed},
	StatusFailed:   {StatusRetrying},
	StatusRetrying: {StatusSuccess, StatusFailed},
	StatusSuccess:  {},
}

// IsValid reports whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed, StatusRetrying:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status ends the record's lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransitionTo reports whether s -> next is in the transition table.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid reports whether the kind is a known value.
func (k Kind) IsValid() bool {
	switch k {
	case KindAuto, KindManual, KindRetry, KindBackfill, KindPattern:
		return true
	default:
		return false
	}
}

// Error is the structured failure recorded on a commit record.
type Error struct {
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// Record is the durable audit entry for one commit attempt. It belongs to
// exactly one user and is mutated only by the orchestrator that created it.
type Record struct {
	ID           string     `json:"id"`
	UserID       int64      `json:"user_id"`
	RepoFullName string     `json:"repo_full_name"`
	FilePath     string     `json:"file_path"`
	Message      string     `json:"message"`
	Content      string     `json:"content"`
	ContentType  string     `json:"content_type"` // timestamp, quote, ascii
	Status       Status     `json:"status"`
	Kind         Kind       `json:"kind"`
	Trigger      string     `json:"trigger"` // provenance: which cadence or endpoint
	ScheduledFor time.Time  `json:"scheduled_for"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty"`
	RemoteSHA    string     `json:"remote_sha,omitempty"`
	RemoteURL    string     `json:"remote_url,omitempty"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	Error        *Error     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Transition moves the record to next, enforcing the transition table.
func (r *Record) Transition(next Status) error {
	if !next.IsValid() {
		return fmt.Errorf("unknown commit status %q", next)
	}
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal commit status transition %s -> %s", r.Status, next)
	}
	if next == StatusRetrying {
		if r.RetryCount >= r.MaxRetries {
			return fmt.Errorf("retry budget exhausted (%d/%d)", r.RetryCount, r.MaxRetries)
		}
		r.RetryCount++
	}
	r.Status = next
	return nil
}

// MarkSuccess records a successful remote commit.
func (r *Record) MarkSuccess(sha, url string, at time.Time) error {
	if err := r.Transition(StatusSuccess); err != nil {
		return err
	}
	r.RemoteSHA = sha
	r.RemoteURL = url
	r.ExecutedAt = &at
	r.Error = nil
	return nil
}

// MarkFailed records a failed attempt with its structured error.
func (r *Record) MarkFailed(e Error) error {
	if err := r.Transition(StatusFailed); err != nil {
		return err
	}
	r.Error = &e
	return nil
}

// Retryable reports whether the retry sweep may pick this record up.
func (r *Record) Retryable() bool {
	return r.Status == StatusFailed && r.RetryCount < r.MaxRetries
}

// Result is what callers of the orchestration entry points receive.
type Result struct {
	Success        bool    `json:"success"`
	Commit         *Record `json:"commit,omitempty"`
	CommitsCreated int     `json:"commits_created,omitempty"`
	CommitsFailed  int     `json:"commits_failed,omitempty"`
	Skipped        bool    `json:"skipped,omitempty"`
	Reason         string  `json:"reason,omitempty"` // machine-readable code for skipped outcomes
	Error          string  `json:"error,omitempty"`
}
