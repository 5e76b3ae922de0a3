package dto

import (
	"time"

	"github.com/nikhilbhatia/commitcanvas/internal/domain/commit"
)

// CommitRecordDTO represents a commit record in API responses
// Uses camelCase for frontend compatibility
type CommitRecordDTO struct {
	ID           string      `json:"id"`
	UserID       int64       `json:"userId"`
	RepoFullName string      `json:"repoFullName"`
	FilePath     string      `json:"filePath"`
	Message      string      `json:"message"`
	ContentType  string      `json:"contentType"`
	Status       string      `json:"status"`
	Kind         string      `json:"kind"`
	Trigger      string      `json:"trigger"`
	ScheduledFor time.Time   `json:"scheduledFor"`
	ExecutedAt   *time.Time  `json:"executedAt,omitempty"`
	RemoteSHA    string      `json:"remoteSha,omitempty"`
	RemoteURL    string      `json:"remoteUrl,omitempty"`
	RetryCount   int         `json:"retryCount"`
	MaxRetries   int         `json:"maxRetries"`
	Error        interface{} `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// FromRecord maps a domain record to its API shape.
func FromRecord(r *commit.Record) CommitRecordDTO {
	d := CommitRecordDTO{
		ID:           r.ID,
		UserID:       r.UserID,
		RepoFullName: r.RepoFullName,
		FilePath:     r.FilePath,
		Message:      r.Message,
		ContentType:  r.ContentType,
		Status:       string(r.Status),
		Kind:         string(r.Kind),
		Trigger:      r.Trigger,
		ScheduledFor: r.ScheduledFor,
		ExecutedAt:   r.ExecutedAt,
		RemoteSHA:    r.RemoteSHA,
		RemoteURL:    r.RemoteURL,
		RetryCount:   r.RetryCount,
		MaxRetries:   r.MaxRetries,
		CreatedAt:    r.CreatedAt,
	}
	if r.Error != nil {
		d.Error = r.Error
	}
	return d
}

// ResultDTO represents the outcome of a commit operation
type ResultDTO struct {
	Success        bool             `json:"success"`
	Commit         *CommitRecordDTO `json:"commit,omitempty"`
	CommitsCreated int              `json:"commitsCreated,omitempty"`
	CommitsFailed  int              `json:"commitsFailed,omitempty"`
	Skipped        bool             `json:"skipped,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// FromResult maps an orchestration result to its API shape.
func FromResult(res *commit.Result) ResultDTO {
	d := ResultDTO{
		Success:        res.Success,
		CommitsCreated: res.CommitsCreated,
		CommitsFailed:  res.CommitsFailed,
		Skipped:        res.Skipped,
		Reason:         res.Reason,
	}
	if res.Commit != nil {
		rec := FromRecord(res.Commit)
		d.Commit = &rec
	}
	return d
}

// TriggerCommitRequest represents a manual commit trigger request
type TriggerCommitRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

// BackfillRequest represents a past-commit generation request
type BackfillRequest struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	From   string `json:"from" validate:"required,datetime=2006-01-02"`
	To     string `json:"to" validate:"required,datetime=2006-01-02"`
}

// StreakRequest represents a streak generation request
type StreakRequest struct {
	UserID int64    `json:"userId" validate:"required,gt=0"`
	Dates  []string `json:"dates" validate:"required,min=1,dive,datetime=2006-01-02"`
	Force  bool     `json:"force,omitempty"`
}

// PatternRequest represents a contribution-graph pattern request
type PatternRequest struct {
	UserID    int64  `json:"userId" validate:"required,gt=0"`
	Text      string `json:"text" validate:"required,min=1,max=10"`
	Intensity int    `json:"intensity,omitempty" validate:"omitempty,gte=1,lte=4"`
	Alignment string `json:"alignment,omitempty" validate:"omitempty,oneof=left center right"`
	Spacing   int    `json:"spacing,omitempty" validate:"omitempty,gte=1,lte=3"`
	EndDate   string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}
