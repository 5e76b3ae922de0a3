package client

import "time"

// CommitRecord is a commit audit record as returned by the API
type CommitRecord struct {
	ID           string     `json:"id"`
	UserID       int64      `json:"userId"`
	RepoFullName string     `json:"repoFullName"`
	FilePath     string     `json:"filePath"`
	Message      string     `json:"message"`
	ContentType  string     `json:"contentType"`
	Status       string     `json:"status"`
	Kind         string     `json:"kind"`
	Trigger      string     `json:"trigger"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	ExecutedAt   *time.Time `json:"executedAt,omitempty"`
	RemoteSHA    string     `json:"remoteSha,omitempty"`
	RemoteURL    string     `json:"remoteUrl,omitempty"`
	RetryCount   int        `json:"retryCount"`
	MaxRetries   int        `json:"maxRetries"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// CommitResult is the outcome of a commit operation
type CommitResult struct {
	Success        bool          `json:"success"`
	Commit         *CommitRecord `json:"commit,omitempty"`
	CommitsCreated int           `json:"commitsCreated,omitempty"`
	CommitsFailed  int           `json:"commitsFailed,omitempty"`
	Skipped        bool          `json:"skipped,omitempty"`
	Reason         string        `json:"reason,omitempty"`
}

// CommitPage is one page of a user's commit history
type CommitPage struct {
	Data       []CommitRecord `json:"data"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
}

// SchedulerStatus is the dispatcher's externally visible state
type SchedulerStatus struct {
	Initialized    bool      `json:"initialized"`
	Running        bool      `json:"running"`
	ActiveCadences []string  `json:"activeCadences"`
	Timezone       string    `json:"timezone"`
	Now            time.Time `json:"now"`
}

// TriggerRequest asks for a single manual commit
type TriggerRequest struct {
	UserID int64 `json:"userId"`
}

// BackfillRequest asks for one backdated commit per day in [From, To]
type BackfillRequest struct {
	UserID int64  `json:"userId"`
	From   string `json:"from"` // YYYY-MM-DD
	To     string `json:"to"`   // YYYY-MM-DD
}

// StreakRequest asks for backdated commits on explicit dates
type StreakRequest struct {
	UserID int64    `json:"userId"`
	Dates  []string `json:"dates"` // YYYY-MM-DD
	Force  bool     `json:"force,omitempty"`
}

// PatternRequest asks for text rendered onto the contribution graph
type PatternRequest struct {
	UserID    int64  `json:"userId"`
	Text      string `json:"text"`
	Intensity int    `json:"intensity,omitempty"`
	Alignment string `json:"alignment,omitempty"`
	Spacing   int    `json:"spacing,omitempty"`
	EndDate   string `json:"endDate,omitempty"` // YYYY-MM-DD
}

// HealthResponse is the liveness probe payload
type HealthResponse struct {
	Status string `json:"status"`
}
