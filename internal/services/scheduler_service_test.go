package services

import (
	"context"
	"testing"
	"time"

	"github.com/nikhilbhatia/commitcanvas/internal/config"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/commit"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
	"github.com/nikhilbhatia/commitcanvas/internal/testutil"
)

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:          true,
		Timezone:         "UTC",
		DailyBatchCron:   "0 12 * * *",
		WindowCheckCron:  "*/5 * * * *",
		RetrySweepCron:   "15 * * * *",
		CleanupSweepCron: "30 3 * * *",
		RetentionDays:    30,
	}
}

type schedulerFixture struct {
	sched   *SchedulerService
	svc     *CommitService
	users   *testutil.MockUserStore
	records *testutil.MockCommitStore
	remote  *testutil.FakeRemoteClient
	clock   *testutil.FakeClock
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	users := testutil.NewMockUserStore()
	records := testutil.NewMockCommitStore()
	remote := testutil.NewFakeRemoteClient()
	clock := testutil.NewFakeClock(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))

	svc := NewCommitService(users, records, remote, &testutil.RecordingNotifier{}, testLogger(), clock,
		CommitServiceConfig{WriteDelay: time.Microsecond})

	sched, err := NewSchedulerService(testSchedulerConfig(), users, records, svc, testLogger(), clock)
	if err != nil {
		t.Fatalf("NewSchedulerService: %v", err)
	}

	return &schedulerFixture{sched: sched, svc: svc, users: users, records: records, remote: remote, clock: clock}
}

func TestSchedulerRejectsBadTimezone(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.Timezone = "Mars/Olympus_Mons"

	_, err := NewSchedulerService(cfg, testutil.NewMockUserStore(), testutil.NewMockCommitStore(),
		nil, testLogger(), nil)
	if err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	f := newSchedulerFixture(t)

	if got := f.sched.State(); got != StateUninitialized {
		t.Fatalf("initial state = %s", got)
	}

	// Start before Init is an error.
	if err := f.sched.Start(); err == nil {
		t.Fatal("Start before Init must fail")
	}

	if err := f.sched.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := f.sched.State(); got != StateInitialized {
		t.Fatalf("state after Init = %s", got)
	}

	// Re-Init is a warned no-op.
	if err := f.sched.Init(); err != nil {
		t.Fatalf("second Init must be a no-op, got %v", err)
	}

	if err := f.sched.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := f.sched.State(); got != StateRunning {
		t.Fatalf("state after Start = %s", got)
	}

	// Re-Start is a warned no-op.
	if err := f.sched.Start(); err != nil {
		t.Fatalf("second Start must be a no-op, got %v", err)
	}

	f.sched.Stop()
	if got := f.sched.State(); got != StateUninitialized {
		t.Fatalf("state after Stop = %s", got)
	}

	// Stop is idempotent.
	f.sched.Stop()

	// A fresh Init/Start cycle works after Stop.
	if err := f.sched.Init(); err != nil {
		t.Fatalf("re-Init after Stop: %v", err)
	}
	if err := f.sched.Start(); err != nil {
		t.Fatalf("re-Start after Stop: %v", err)
	}
	f.sched.Stop()
}

func TestSchedulerStatus(t *testing.T) {
	f := newSchedulerFixture(t)

	status := f.sched.Status()
	if status.Initialized || status.Running || len(status.ActiveCadences) != 0 {
		t.Fatalf("uninitialized status = %+v", status)
	}

	if err := f.sched.Init(); err != nil {
		t.Fatal(err)
	}
	defer f.sched.Stop()

	status = f.sched.Status()
	if !status.Initialized || status.Running {
		t.Fatalf("initialized status = %+v", status)
	}

	want := []string{CadenceCleanupSweep, CadenceDailyBatch, CadenceRetrySweep, CadenceWindowCheck}
	if len(status.ActiveCadences) != len(want) {
		t.Fatalf("cadences = %v, want %v", status.ActiveCadences, want)
	}
	for i, name := range want {
		if status.ActiveCadences[i] != name {
			t.Errorf("cadences[%d] = %s, want %s (sorted)", i, status.ActiveCadences[i], name)
		}
	}
	if status.Timezone != "UTC" {
		t.Errorf("timezone = %s", status.Timezone)
	}
}

func TestMatchesWindow(t *testing.T) {
	base := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)
	tol := 5 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		hhmm string
		want bool
	}{
		{"exact", base, "14:00", true},
		{"three minutes late", base.Add(3 * time.Minute), "14:00", true},
		{"three minutes early", base.Add(-3 * time.Minute), "14:00", true},
		{"at tolerance edge", base.Add(5 * time.Minute), "14:00", true},
		{"past tolerance", base.Add(6 * time.Minute), "14:00", false},
		{"different hour", base, "15:00", false},
		{"malformed time", base, "25:99", false},
		{"empty time", base, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesWindow(tt.now, tt.hhmm, tol); got != tt.want {
				t.Errorf("matchesWindow(%v, %q) = %v, want %v", tt.now, tt.hhmm, got, tt.want)
			}
		})
	}
}

func TestRunDailyBatch(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	eligible := testUser(0)
	eligible.Tier = user.TierStandard
	eligible.IsSubscribed = false
	start := f.clock.Now().AddDate(0, 0, -5)
	end := f.clock.Now().AddDate(0, 0, 5)
	eligible.TrialStart, eligible.TrialEnd = &start, &end
	if err := f.users.Create(ctx, eligible); err != nil {
		t.Fatal(err)
	}

	expired := testUser(0)
	expired.Tier = user.TierStandard
	expired.IsSubscribed = false
	expStart := f.clock.Now().AddDate(0, 0, -40)
	expEnd := f.clock.Now().AddDate(0, 0, -10)
	expired.TrialStart, expired.TrialEnd = &expStart, &expEnd
	if err := f.users.Create(ctx, expired); err != nil {
		t.Fatal(err)
	}

	f.sched.RunDailyBatch(ctx)

	if f.remote.CallCount() != 1 {
		t.Fatalf("remote calls = %d, want 1 (only the in-trial user)", f.remote.CallCount())
	}
	if n := f.records.CountByStatus(commit.StatusSuccess); n != 1 {
		t.Fatalf("success records = %d, want 1", n)
	}

	// A second pass the same day produces nothing new.
	f.sched.RunDailyBatch(ctx)
	if f.remote.CallCount() != 1 {
		t.Errorf("remote calls after rerun = %d, want 1", f.remote.CallCount())
	}
}

func TestRunWindowCheck(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	inWindow := testUser(0)
	inWindow.Settings.Time = "12:02"
	if err := f.users.Create(ctx, inWindow); err != nil {
		t.Fatal(err)
	}

	outOfWindow := testUser(0)
	outOfWindow.Settings.Time = "18:00"
	if err := f.users.Create(ctx, outOfWindow); err != nil {
		t.Fatal(err)
	}

	f.sched.RunWindowCheck(ctx) // clock reads 12:00

	if f.remote.CallCount() != 1 {
		t.Fatalf("remote calls = %d, want 1 (only the matching window)", f.remote.CallCount())
	}

	// The same user is not fired twice within the window.
	f.clock.Advance(4 * time.Minute)
	f.sched.RunWindowCheck(ctx)
	if f.remote.CallCount() != 1 {
		t.Errorf("remote calls after recheck = %d, want 1", f.remote.CallCount())
	}
}

func TestRunRetrySweep(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	u := testUser(0)
	if err := f.users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}

	retryable := &commit.Record{
		UserID:       u.ID,
		RepoFullName: u.ActiveRepo.FullName,
		FilePath:     u.ActiveRepo.FilePath,
		Message:      "retry me",
		Status:       commit.StatusFailed,
		Kind:         commit.KindAuto,
		ScheduledFor: f.clock.Now().Add(-time.Hour),
		MaxRetries:   1,
		Error:        &commit.Error{Message: "boom", Code: errors.ErrCodeRemoteUnknown},
	}
	if err := f.records.Create(ctx, retryable); err != nil {
		t.Fatal(err)
	}

	exhausted := &commit.Record{
		UserID:       u.ID,
		RepoFullName: u.ActiveRepo.FullName,
		Status:       commit.StatusFailed,
		Kind:         commit.KindAuto,
		ScheduledFor: f.clock.Now().Add(-2 * time.Hour),
		RetryCount:   1,
		MaxRetries:   1,
	}
	if err := f.records.Create(ctx, exhausted); err != nil {
		t.Fatal(err)
	}

	f.sched.RunRetrySweep(ctx)

	got, err := f.records.GetByID(ctx, retryable.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != commit.StatusSuccess {
		t.Errorf("retried record status = %s, want success", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}

	still, err := f.records.GetByID(ctx, exhausted.ID)
	if err != nil {
		t.Fatal(err)
	}
	if still.Status != commit.StatusFailed {
		t.Errorf("exhausted record status = %s, must stay failed", still.Status)
	}
	if f.remote.CallCount() != 1 {
		t.Errorf("remote calls = %d, want 1", f.remote.CallCount())
	}
}

func TestRunRetrySweepRespectsBudget(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	u := testUser(0)
	if err := f.users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	f.remote.UpsertError = errors.RemoteUnknown(nil)

	rec := &commit.Record{
		UserID:       u.ID,
		RepoFullName: u.ActiveRepo.FullName,
		Status:       commit.StatusFailed,
		Kind:         commit.KindAuto,
		ScheduledFor: f.clock.Now().Add(-time.Hour),
		MaxRetries:   1,
	}
	if err := f.records.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	// First sweep consumes the single retry; later sweeps leave the
	// record alone.
	f.sched.RunRetrySweep(ctx)
	f.sched.RunRetrySweep(ctx)
	f.sched.RunRetrySweep(ctx)

	if f.remote.CallCount() != 1 {
		t.Fatalf("remote calls = %d, want exactly 1 retry", f.remote.CallCount())
	}
	got, err := f.records.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != commit.StatusFailed || got.RetryCount != 1 {
		t.Errorf("record = %s retries=%d, want failed with 1 retry", got.Status, got.RetryCount)
	}
}

func TestRunCleanupSweep(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	old := &commit.Record{
		UserID:       1,
		Status:       commit.StatusSuccess,
		Kind:         commit.KindAuto,
		ScheduledFor: f.clock.Now().AddDate(0, 0, -45),
		CreatedAt:    f.clock.Now().AddDate(0, 0, -45),
		MaxRetries:   1,
	}
	recent := &commit.Record{
		UserID:       1,
		Status:       commit.StatusSuccess,
		Kind:         commit.KindAuto,
		ScheduledFor: f.clock.Now().AddDate(0, 0, -5),
		CreatedAt:    f.clock.Now().AddDate(0, 0, -5),
		MaxRetries:   1,
	}
	oldPending := &commit.Record{
		UserID:       1,
		Status:       commit.StatusPending,
		Kind:         commit.KindAuto,
		ScheduledFor: f.clock.Now().AddDate(0, 0, -45),
		CreatedAt:    f.clock.Now().AddDate(0, 0, -45),
		MaxRetries:   1,
	}
	for _, rec := range []*commit.Record{old, recent, oldPending} {
		if err := f.records.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	f.sched.RunCleanupSweep(ctx)

	if _, err := f.records.GetByID(ctx, old.ID); err == nil {
		t.Error("old terminal record should be removed")
	}
	if _, err := f.records.GetByID(ctx, recent.ID); err != nil {
		t.Error("recent record must survive the sweep")
	}
	if _, err := f.records.GetByID(ctx, oldPending.ID); err != nil {
		t.Error("non-terminal records are never cleaned up")
	}
}
