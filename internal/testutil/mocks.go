package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhatia/commitcanvas/internal/domain/commit"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
	"github.com/nikhilbhatia/commitcanvas/internal/github"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
)

// MockUserStore is an in-memory implementation of user.Store
type MockUserStore struct {
	Users       map[int64]*user.User
	NextID      int64
	CreateError error
	GetError    error
	UpdateError error
	ListError   error
}

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{
		Users:  make(map[int64]*user.User),
		NextID: 1,
	}
}

func (m *MockUserStore) Create(ctx context.Context, u *user.User) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	u.ID = m.NextID
	m.NextID++
	m.Users[u.ID] = u
	return nil
}

func (m *MockUserStore) GetByID(ctx context.Context, id int64) (*user.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, errors.NotFound("user")
	}
	return u, nil
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	for _, u := range m.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, errors.NotFound("user")
}

func (m *MockUserStore) Update(ctx context.Context, u *user.User) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if _, ok := m.Users[u.ID]; !ok {
		return errors.NotFound("user")
	}
	m.Users[u.ID] = u
	return nil
}

func (m *MockUserStore) ListAutoCommitCandidates(ctx context.Context, tier user.Tier) ([]*user.User, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	var out []*user.User
	for _, u := range m.Users {
		if u.Tier == tier && u.IsActive && u.Settings.EnableAutoCommits && u.ActiveRepo != nil {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockCommitStore is an in-memory implementation of commit.Store
type MockCommitStore struct {
	mu          sync.Mutex
	Records     map[string]*commit.Record
	CreateError error
	UpdateError error
	GetError    error
}

func NewMockCommitStore() *MockCommitStore {
	return &MockCommitStore{
		Records: make(map[string]*commit.Record),
	}
}

func (m *MockCommitStore) Create(ctx context.Context, rec *commit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.MaxRetries == 0 {
		rec.MaxRetries = commit.DefaultMaxRetries
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = rec.CreatedAt
	cp := *rec
	m.Records[rec.ID] = &cp
	return nil
}

func (m *MockCommitStore) Update(ctx context.Context, rec *commit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if _, ok := m.Records[rec.ID]; !ok {
		return fmt.Errorf("commit record %s not found", rec.ID)
	}
	rec.UpdatedAt = time.Now()
	cp := *rec
	m.Records[rec.ID] = &cp
	return nil
}

func (m *MockCommitStore) GetByID(ctx context.Context, id string) (*commit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	rec, ok := m.Records[id]
	if !ok {
		return nil, errors.NotFound("commit record")
	}
	cp := *rec
	return &cp, nil
}

func (m *MockCommitStore) HasSuccessForDay(ctx context.Context, userID int64, kind commit.Kind, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	y, mo, d := day.Date()
	for _, rec := range m.Records {
		ry, rmo, rd := rec.ScheduledFor.Date()
		if rec.UserID == userID && rec.Kind == kind && rec.Status == commit.StatusSuccess &&
			ry == y && rmo == mo && rd == d {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockCommitStore) ListRetryable(ctx context.Context, staleAfter time.Duration) ([]*commit.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-staleAfter)
	var out []*commit.Record
	for _, rec := range m.Records {
		if rec.Retryable() || (rec.Status == commit.StatusPending && rec.CreatedAt.Before(cutoff)) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockCommitStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*commit.Record, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*commit.Record
	for _, rec := range m.Records {
		if rec.UserID == userID {
			cp := *rec
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ScheduledFor.After(all[j].ScheduledFor) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *MockCommitStore) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, rec := range m.Records {
		if rec.Status.IsTerminal() && rec.CreatedAt.Before(cutoff) {
			delete(m.Records, id)
			n++
		}
	}
	return n, nil
}

func (m *MockCommitStore) DeleteForUserRange(ctx context.Context, userID int64, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, rec := range m.Records {
		if rec.UserID == userID && !rec.ScheduledFor.Before(from) && !rec.ScheduledFor.After(to) {
			delete(m.Records, id)
			n++
		}
	}
	return n, nil
}

// CountByStatus returns how many stored records carry the given status.
func (m *MockCommitStore) CountByStatus(status commit.Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.Records {
		if rec.Status == status {
			n++
		}
	}
	return n
}

// UpsertCall records one remote write for assertions.
type UpsertCall struct {
	RepoFullName string
	Path         string
	Content      string
	Message      string
	Opts         github.UpsertOptions
}

// FakeRemoteClient is a scriptable implementation of the remote client.
// UpsertErrors maps the call index (0-based) to the error returned for
// that call; unmapped calls succeed.
type FakeRemoteClient struct {
	mu            sync.Mutex
	Calls         []UpsertCall
	UpsertErrors  map[int]error
	UpsertError   error
	DefaultBranch string
	Viewer        *github.Identity
	ViewerError   error
}

func NewFakeRemoteClient() *FakeRemoteClient {
	return &FakeRemoteClient{
		DefaultBranch: "main",
		Viewer:        &github.Identity{Name: "octocat", Email: "octocat@users.noreply.github.com"},
	}
}

func (f *FakeRemoteClient) GetDefaultBranch(ctx context.Context, repoFullName string) string {
	return f.DefaultBranch
}

func (f *FakeRemoteClient) UpsertFile(ctx context.Context, repoFullName, path, content, message string, opts github.UpsertOptions) (*github.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := len(f.Calls)
	f.Calls = append(f.Calls, UpsertCall{
		RepoFullName: repoFullName,
		Path:         path,
		Content:      content,
		Message:      message,
		Opts:         opts,
	})

	if err, ok := f.UpsertErrors[idx]; ok {
		return nil, err
	}
	if f.UpsertError != nil {
		return nil, f.UpsertError
	}
	return &github.CommitResult{
		SHA:    fmt.Sprintf("sha-%d", idx),
		URL:    fmt.Sprintf("https://github.com/%s/commit/sha-%d", repoFullName, idx),
		Branch: f.DefaultBranch,
	}, nil
}

func (f *FakeRemoteClient) GetViewer(ctx context.Context) (*github.Identity, error) {
	if f.ViewerError != nil {
		return nil, f.ViewerError
	}
	return f.Viewer, nil
}

// CallCount returns how many remote writes were attempted.
func (f *FakeRemoteClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// FakeClock is a settable clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RecordingNotifier captures notifications for assertions.
type RecordingNotifier struct {
	mu    sync.Mutex
	Sent  []int64
	Error error
}

func (n *RecordingNotifier) SendCommitNotification(ctx context.Context, u *user.User, rec *commit.Record, remote *github.CommitResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Error != nil {
		return n.Error
	}
	n.Sent = append(n.Sent, u.ID)
	return nil
}

// SentCount returns how many notifications were delivered.
func (n *RecordingNotifier) SentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Sent)
}
