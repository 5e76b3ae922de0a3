package user

import "time"

// Tier is the subscription tier of a user.
type Tier string

const (
	TierStandard Tier = "standard"
	TierElevated Tier = "elevated"
)

// User represents the subset of an account the commit engine cares about.
type User struct {
	ID           int64          `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	FullName     string         `json:"full_name,omitempty"`
	Tier         Tier           `json:"tier"`
	IsSubscribed bool           `json:"is_subscribed"`
	TrialStart   *time.Time     `json:"trial_start,omitempty"`
	TrialEnd     *time.Time     `json:"trial_end,omitempty"`
	IsActive     bool           `json:"is_active"`
	Settings     CommitSettings `json:"settings"`
	ActiveRepo   *Repository    `json:"active_repository,omitempty"`

	// Streak counters maintained as a side effect of successful commits.
	TotalCommits   int        `json:"total_commits"`
	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	LastCommitDate *time.Time `json:"last_commit_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository is the user's selected target repository. At most one may be
// active per user at a time.
type Repository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"` // owner/repo
	URL      string `json:"url"`
	FilePath string `json:"file_path"` // file the engine writes to
	IsActive bool   `json:"is_active"`
}

// CommitSettings is the per-user commit configuration.
type CommitSettings struct {
	Time                     string   `json:"time"`     // HH:MM, elevated-tier window check
	Timezone                 string   `json:"timezone"` // IANA name, defaults to UTC
	Messages                 []string `json:"messages,omitempty"`
	CustomMessages           []string `json:"custom_messages,omitempty"`
	EnableAutoCommits        bool     `json:"enable_auto_commits"`
	EnableSmartContent       bool     `json:"enable_smart_content"`
	EnableEmailNotifications bool     `json:"enable_email_notifications"`
}

// Location resolves the user's configured timezone, falling back to UTC.
func (s CommitSettings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MessagePool returns the configured commit messages, custom first.
func (s CommitSettings) MessagePool() []string {
	pool := make([]string, 0, len(s.CustomMessages)+len(s.Messages))
	pool = append(pool, s.CustomMessages...)
	pool = append(pool, s.Messages...)
	return pool
}

// InTrial reports whether now falls inside the user's trial window.
func (u *User) InTrial(now time.Time) bool {
	if u.TrialStart == nil || u.TrialEnd == nil {
		return false
	}
	return !now.Before(*u.TrialStart) && !now.After(*u.TrialEnd)
}

// IsElevated reports whether the user holds an active elevated subscription.
func (u *User) IsElevated() bool {
	return u.Tier == TierElevated && u.IsSubscribed
}

// CanAutoCommit decides eligibility for automatic commits. A standard-tier
// user with an expired trial is never eligible regardless of toggles.
func (u *User) CanAutoCommit(now time.Time) bool {
	if !u.IsActive || !u.Settings.EnableAutoCommits {
		return false
	}
	if u.IsElevated() {
		return true
	}
	return u.InTrial(now)
}
