package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/nikhilbhatia/commitcanvas/internal/domain/commit"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/logger"
	"github.com/nikhilbhatia/commitcanvas/internal/testutil"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "console"})
}

func testUser(id int64) *user.User {
	return &user.User{
		ID:           id,
		Username:     "octocat",
		Email:        "octocat@example.com",
		Tier:         user.TierElevated,
		IsSubscribed: true,
		IsActive:     true,
		Settings: user.CommitSettings{
			Time:              "12:00",
			Timezone:          "UTC",
			EnableAutoCommits: true,
		},
		ActiveRepo: &user.Repository{
			ID:       1,
			Name:     "canvas",
			FullName: "octocat/canvas",
			FilePath: "activity.log",
			IsActive: true,
		},
	}
}

type serviceFixture struct {
	svc      *CommitService
	users    *testutil.MockUserStore
	records  *testutil.MockCommitStore
	remote   *testutil.FakeRemoteClient
	clock    *testutil.FakeClock
	notifier *testutil.RecordingNotifier
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	users := testutil.NewMockUserStore()
	records := testutil.NewMockCommitStore()
	remote := testutil.NewFakeRemoteClient()
	clock := testutil.NewFakeClock(time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC))
	notifier := &testutil.RecordingNotifier{}

	svc := NewCommitService(users, records, remote, notifier, testLogger(), clock,
		CommitServiceConfig{WriteDelay: time.Microsecond})

	return &serviceFixture{svc: svc, users: users, records: records, remote: remote, clock: clock, notifier: notifier}
}

func TestProduceCommitNoActiveRepository(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	u.ActiveRepo = nil

	_, err := f.svc.ProduceCommit(context.Background(), u, commit.KindManual, "api")
	if !errors.IsCode(err, errors.ErrCodeNoActiveRepository) {
		t.Fatalf("expected NO_ACTIVE_REPOSITORY, got %v", err)
	}
	if f.remote.CallCount() != 0 {
		t.Error("no remote write should happen without an active repository")
	}
}

func TestProduceCommitIdempotentPerDay(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u

	res, err := f.svc.ProduceCommit(context.Background(), u, commit.KindAuto, "daily_batch")
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if res.Skipped {
		t.Fatal("first commit must not be skipped")
	}

	res, err = f.svc.ProduceCommit(context.Background(), u, commit.KindAuto, "daily_batch")
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if !res.Skipped {
		t.Fatal("same-day automatic commit must be skipped")
	}
	if res.Reason != errors.ErrCodeAlreadyCommitted {
		t.Errorf("skip reason = %q, want %q", res.Reason, errors.ErrCodeAlreadyCommitted)
	}
	if f.remote.CallCount() != 1 {
		t.Errorf("remote calls = %d, want 1", f.remote.CallCount())
	}

	// A new day lifts the guard.
	f.clock.Advance(24 * time.Hour)
	res, err = f.svc.ProduceCommit(context.Background(), u, commit.KindAuto, "daily_batch")
	if err != nil {
		t.Fatalf("next-day commit: %v", err)
	}
	if res.Skipped {
		t.Fatal("next-day commit must not be skipped")
	}
}

func TestProduceCommitManualIgnoresDailyGuard(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u

	for i := 0; i < 2; i++ {
		res, err := f.svc.ProduceCommit(context.Background(), u, commit.KindManual, "api")
		if err != nil {
			t.Fatalf("manual commit %d: %v", i, err)
		}
		if res.Skipped {
			t.Fatal("manual commits are never skipped")
		}
	}
	if f.remote.CallCount() != 2 {
		t.Errorf("remote calls = %d, want 2", f.remote.CallCount())
	}
}

func TestProduceCommitTrialExpired(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	u.Tier = user.TierStandard
	u.IsSubscribed = false
	start := f.clock.Now().AddDate(0, 0, -30)
	end := f.clock.Now().AddDate(0, 0, -1)
	u.TrialStart, u.TrialEnd = &start, &end
	f.users.Users[u.ID] = u

	_, err := f.svc.ProduceCommit(context.Background(), u, commit.KindAuto, "daily_batch")
	if !errors.IsCode(err, errors.ErrCodeTrialExpired) {
		t.Fatalf("expected TRIAL_EXPIRED, got %v", err)
	}
	if f.remote.CallCount() != 0 {
		t.Error("expired trial must not reach the remote")
	}
}

func TestProduceCommitSuccess(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u

	res, err := f.svc.ProduceCommit(context.Background(), u, commit.KindAuto, "daily_batch")
	if err != nil {
		t.Fatalf("ProduceCommit: %v", err)
	}
	if res.Commit == nil || res.Commit.Status != commit.StatusSuccess {
		t.Fatalf("result commit = %+v, want success", res.Commit)
	}
	if res.Commit.RemoteSHA == "" || res.Commit.ExecutedAt == nil {
		t.Error("success must carry remote metadata and execution time")
	}

	stored, err := f.records.GetByID(context.Background(), res.Commit.ID)
	if err != nil {
		t.Fatalf("stored record: %v", err)
	}
	if stored.Status != commit.StatusSuccess {
		t.Errorf("stored status = %s, want success", stored.Status)
	}

	if u.TotalCommits != 1 || u.CurrentStreak != 1 || u.LastCommitDate == nil {
		t.Errorf("streak side effects missing: total=%d streak=%d last=%v",
			u.TotalCommits, u.CurrentStreak, u.LastCommitDate)
	}
}

func TestProduceCommitRemoteFailure(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u
	f.remote.UpsertError = errors.RemoteUnknown(nil)

	_, err := f.svc.ProduceCommit(context.Background(), u, commit.KindManual, "api")
	if !errors.IsCode(err, errors.ErrCodeRemoteUnknown) {
		t.Fatalf("expected UNKNOWN_REMOTE_FAILURE, got %v", err)
	}

	if n := f.records.CountByStatus(commit.StatusFailed); n != 1 {
		t.Errorf("failed records = %d, want 1", n)
	}
	for _, rec := range f.records.Records {
		if rec.Error == nil || rec.Error.Code != errors.ErrCodeRemoteUnknown {
			t.Errorf("record error = %+v, want UNKNOWN_REMOTE_FAILURE", rec.Error)
		}
		if !rec.Retryable() {
			t.Error("failed record with budget should be retryable")
		}
	}
}

func TestStreakArithmetic(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u

	ctx := context.Background()
	produce := func() {
		t.Helper()
		if _, err := f.svc.ProduceCommit(ctx, u, commit.KindManual, "api"); err != nil {
			t.Fatalf("ProduceCommit: %v", err)
		}
	}

	produce()
	if u.CurrentStreak != 1 {
		t.Fatalf("streak = %d after day 1, want 1", u.CurrentStreak)
	}

	// Same day again: unchanged.
	produce()
	if u.CurrentStreak != 1 {
		t.Fatalf("streak = %d after same-day repeat, want 1", u.CurrentStreak)
	}

	// Next day: extended.
	f.clock.Advance(24 * time.Hour)
	produce()
	if u.CurrentStreak != 2 {
		t.Fatalf("streak = %d after consecutive day, want 2", u.CurrentStreak)
	}

	// Two-day gap: reset, longest preserved.
	f.clock.Advance(72 * time.Hour)
	produce()
	if u.CurrentStreak != 1 {
		t.Fatalf("streak = %d after gap, want 1", u.CurrentStreak)
	}
	if u.LongestStreak != 2 {
		t.Fatalf("longest streak = %d, want 2", u.LongestStreak)
	}
	if u.TotalCommits != 4 {
		t.Fatalf("total commits = %d, want 4", u.TotalCommits)
	}
}

func TestBackfillPreservesLiveStreak(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	today := dayOf(f.clock.Now())
	u.TotalCommits = 40
	u.CurrentStreak = 5
	u.LongestStreak = 5
	u.LastCommitDate = &today
	f.users.Users[u.ID] = u

	from := f.clock.Now().AddDate(0, 0, -30)
	to := f.clock.Now().AddDate(0, 0, -28)
	res, err := f.svc.GeneratePastCommits(context.Background(), u, from, to)
	if err != nil {
		t.Fatalf("GeneratePastCommits: %v", err)
	}
	if res.CommitsCreated != 3 {
		t.Fatalf("created = %d, want 3", res.CommitsCreated)
	}

	if u.CurrentStreak != 5 {
		t.Errorf("backdated run changed the live streak: %d, want 5", u.CurrentStreak)
	}
	if u.LongestStreak != 5 {
		t.Errorf("longest streak = %d, want 5", u.LongestStreak)
	}
	if !u.LastCommitDate.Equal(today) {
		t.Errorf("last commit date moved to %v, want %v", u.LastCommitDate, today)
	}
	if u.TotalCommits != 43 {
		t.Errorf("total commits = %d, want 43", u.TotalCommits)
	}
}

func TestNotifierFailureDoesNotFailCommit(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	u.Settings.EnableEmailNotifications = true
	f.users.Users[u.ID] = u
	f.notifier.Error = stderrors.New("smtp unavailable")

	res, err := f.svc.ProduceCommit(context.Background(), u, commit.KindManual, "api")
	if err != nil {
		t.Fatalf("ProduceCommit: %v", err)
	}
	if res.Commit == nil || res.Commit.Status != commit.StatusSuccess {
		t.Fatalf("result = %+v, want a successful commit", res)
	}
}

func TestNotificationGating(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(u *user.User)
		notified bool
	}{
		{
			name:     "elevated with notifications enabled",
			mutate:   func(u *user.User) { u.Settings.EnableEmailNotifications = true },
			notified: true,
		},
		{
			name:     "elevated with notifications disabled",
			mutate:   func(u *user.User) {},
			notified: false,
		},
		{
			name: "standard tier",
			mutate: func(u *user.User) {
				u.Tier = user.TierStandard
				u.Settings.EnableEmailNotifications = true
			},
			notified: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			u := testUser(1)
			tt.mutate(u)
			f.users.Users[u.ID] = u

			if _, err := f.svc.ProduceCommit(context.Background(), u, commit.KindManual, "api"); err != nil {
				t.Fatalf("ProduceCommit: %v", err)
			}
			if got := f.notifier.SentCount() > 0; got != tt.notified {
				t.Errorf("notified = %v, want %v", got, tt.notified)
			}
		})
	}
}

func TestGeneratePastCommitsValidation(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	now := f.clock.Now()

	_, err := f.svc.GeneratePastCommits(context.Background(), u, now.AddDate(0, 0, -1), now.AddDate(0, 0, -3))
	if !errors.IsCode(err, errors.ErrCodeValidation) {
		t.Errorf("inverted range: expected VALIDATION_ERROR, got %v", err)
	}

	_, err = f.svc.GeneratePastCommits(context.Background(), u, now, now.AddDate(0, 0, 2))
	if !errors.IsCode(err, errors.ErrCodeValidation) {
		t.Errorf("future range: expected VALIDATION_ERROR, got %v", err)
	}
}

func TestGeneratePastCommits(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u
	now := f.clock.Now()

	res, err := f.svc.GeneratePastCommits(context.Background(), u, now.AddDate(0, 0, -3), now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("GeneratePastCommits: %v", err)
	}
	if res.CommitsCreated != 3 || res.CommitsFailed != 0 {
		t.Fatalf("created=%d failed=%d, want 3/0", res.CommitsCreated, res.CommitsFailed)
	}

	// Backdated writes carry a custom date and arrive in chronological
	// order so the remote ancestry chain stays valid.
	var prev time.Time
	for i, call := range f.remote.Calls {
		if call.Opts.CustomDate == nil {
			t.Fatalf("call %d missing custom date", i)
		}
		if i > 0 && call.Opts.CustomDate.Before(prev) {
			t.Fatal("backdated writes must be chronological")
		}
		prev = *call.Opts.CustomDate
		if call.Opts.Author == nil {
			t.Fatalf("call %d missing author identity", i)
		}
	}
}

func TestBulkRunCountsConflictsAndContinues(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u
	f.remote.UpsertErrors = map[int]error{2: errors.RemoteConflict(nil)}
	now := f.clock.Now()

	res, err := f.svc.GeneratePastCommits(context.Background(), u, now.AddDate(0, 0, -5), now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("GeneratePastCommits: %v", err)
	}
	if res.CommitsCreated != 4 || res.CommitsFailed != 1 {
		t.Fatalf("created=%d failed=%d, want 4/1", res.CommitsCreated, res.CommitsFailed)
	}
	if !res.Success {
		t.Error("partial success is still a success for backfill runs")
	}
	if f.remote.CallCount() != 5 {
		t.Errorf("remote calls = %d, want 5 (conflict must not abort)", f.remote.CallCount())
	}
}

func TestGenerateStreakCommitsForceClearsRange(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u

	day := f.clock.Now().AddDate(0, 0, -2)
	stale := &commit.Record{
		UserID:       u.ID,
		RepoFullName: u.ActiveRepo.FullName,
		Status:       commit.StatusSuccess,
		Kind:         commit.KindBackfill,
		ScheduledFor: day,
		MaxRetries:   1,
	}
	if err := f.records.Create(context.Background(), stale); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.GenerateStreakCommits(context.Background(), u, []time.Time{day}, true)
	if err != nil {
		t.Fatalf("GenerateStreakCommits: %v", err)
	}
	if res.CommitsCreated != 1 {
		t.Fatalf("created = %d, want 1", res.CommitsCreated)
	}

	if _, err := f.records.GetByID(context.Background(), stale.ID); err == nil {
		t.Error("force run must delete the pre-existing record in range")
	}
}

func TestGenerateStreakCommitsRequiresDates(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)

	_, err := f.svc.GenerateStreakCommits(context.Background(), u, nil, false)
	if !errors.IsCode(err, errors.ErrCodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestGeneratePatternCommitsRejectsBadText(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u

	_, err := f.svc.GeneratePatternCommits(context.Background(), u, "HELLO WORLD!",
		PatternOptions{Intensity: 2}, f.clock.Now())
	if !errors.IsCode(err, errors.ErrCodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if f.remote.CallCount() != 0 {
		t.Error("invalid pattern text must not reach the remote")
	}
}

func TestGeneratePatternCommitsAbortsOnFailureRate(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u
	f.remote.UpsertError = errors.RemoteUnknown(nil)

	res, err := f.svc.GeneratePatternCommits(context.Background(), u, "HI",
		PatternOptions{Intensity: 1}, f.clock.Now())
	if err == nil {
		t.Fatal("expected the run to abort")
	}
	if res == nil {
		t.Fatal("abort must still report progress")
	}
	if res.CommitsCreated != 0 {
		t.Errorf("created = %d, want 0", res.CommitsCreated)
	}
	if res.CommitsFailed == 0 {
		t.Error("abort must report the failure count")
	}
	// The abort threshold stops the run well before every planned item
	// is attempted.
	if f.remote.CallCount() != res.CommitsFailed {
		t.Errorf("remote calls = %d, want %d (stop at threshold)", f.remote.CallCount(), res.CommitsFailed)
	}
}

func TestGeneratePatternCommitsSuccess(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(1)
	f.users.Users[u.ID] = u

	res, err := f.svc.GeneratePatternCommits(context.Background(), u, "HI",
		PatternOptions{Intensity: 1}, f.clock.Now())
	if err != nil {
		t.Fatalf("GeneratePatternCommits: %v", err)
	}
	if !res.Success || res.CommitsCreated == 0 || res.CommitsFailed != 0 {
		t.Fatalf("result = %+v, want clean success", res)
	}
	if f.remote.CallCount() != res.CommitsCreated {
		t.Errorf("remote calls = %d, want %d", f.remote.CallCount(), res.CommitsCreated)
	}
}
