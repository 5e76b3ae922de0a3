package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
	"github.com/nikhilbhatia/commitcanvas/internal/repository/sqlite"
	"github.com/nikhilbhatia/commitcanvas/internal/testutil"
)

func TestUserRoundTrip(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := sqlite.NewUserRepository(db)
	ctx := context.Background()

	trialStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	trialEnd := trialStart.AddDate(0, 0, 14)

	u := &user.User{
		Username:     "monalisa",
		Email:        "monalisa@example.com",
		FullName:     "Mona Lisa",
		Tier:         user.TierStandard,
		IsSubscribed: false,
		TrialStart:   &trialStart,
		TrialEnd:     &trialEnd,
		IsActive:     true,
		Settings: user.CommitSettings{
			Time:              "09:30",
			Timezone:          "Asia/Kolkata",
			EnableAutoCommits: true,
		},
	}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("Create must assign an ID")
	}

	got, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Username != "monalisa" || got.FullName != "Mona Lisa" || got.Tier != user.TierStandard {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Settings.Time != "09:30" || got.Settings.Timezone != "Asia/Kolkata" || !got.Settings.EnableAutoCommits {
		t.Errorf("settings mismatch: %+v", got.Settings)
	}
	if got.TrialStart == nil || got.TrialEnd == nil {
		t.Fatal("trial timestamps must survive the round trip")
	}
	if !got.TrialEnd.Equal(trialEnd) {
		t.Errorf("trial end = %v, want %v", got.TrialEnd, trialEnd)
	}
	if got.ActiveRepo != nil {
		t.Error("no repository has been selected yet")
	}

	byName, err := users.GetByUsername(ctx, "monalisa")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if byName.ID != u.ID {
		t.Errorf("GetByUsername id = %d, want %d", byName.ID, u.ID)
	}

	if _, err := users.GetByUsername(ctx, "nobody"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown username error = %v, want NOT_FOUND", err)
	}
}

func TestUserUpdate(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := sqlite.NewUserRepository(db)
	ctx := context.Background()

	u := seedUser(t, users)

	last := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	u.TotalCommits = 42
	u.CurrentStreak = 7
	u.LongestStreak = 12
	u.LastCommitDate = &last
	u.Settings.EnableAutoCommits = false
	if err := users.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalCommits != 42 || got.CurrentStreak != 7 || got.LongestStreak != 12 {
		t.Errorf("streak counters = %+v", got)
	}
	if got.LastCommitDate == nil || !got.LastCommitDate.Equal(last) {
		t.Errorf("last commit date = %v, want %v", got.LastCommitDate, last)
	}
	if got.Settings.EnableAutoCommits {
		t.Error("settings update must persist")
	}

	missing := &user.User{ID: 9999, Username: "ghost", Email: "ghost@example.com"}
	if err := users.Update(ctx, missing); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("updating a missing user: error = %v, want NOT_FOUND", err)
	}
}

func TestSetActiveRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := sqlite.NewUserRepository(db)
	ctx := context.Background()

	u := seedUser(t, users)

	first := &user.Repository{
		Name:     "canvas",
		FullName: "octocat/canvas",
		URL:      "https://github.com/octocat/canvas",
		FilePath: "activity.log",
	}
	if err := users.SetActiveRepository(ctx, u.ID, first); err != nil {
		t.Fatalf("SetActiveRepository: %v", err)
	}
	if first.ID == 0 || !first.IsActive {
		t.Errorf("repository not activated: %+v", first)
	}

	got, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveRepo == nil || got.ActiveRepo.FullName != "octocat/canvas" {
		t.Fatalf("active repo = %+v", got.ActiveRepo)
	}
	if got.ActiveRepo.FilePath != "activity.log" {
		t.Errorf("file path = %q", got.ActiveRepo.FilePath)
	}

	// Switching replaces the previous selection. The partial unique
	// index on repositories would reject two active rows, so this also
	// proves the deactivate step ran.
	second := &user.Repository{
		Name:     "graph-art",
		FullName: "octocat/graph-art",
		FilePath: "activity.md",
	}
	if err := users.SetActiveRepository(ctx, u.ID, second); err != nil {
		t.Fatalf("SetActiveRepository (switch): %v", err)
	}

	got, err = users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveRepo == nil || got.ActiveRepo.FullName != "octocat/graph-art" {
		t.Errorf("active repo after switch = %+v", got.ActiveRepo)
	}
}

func TestListAutoCommitCandidates(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := sqlite.NewUserRepository(db)
	ctx := context.Background()

	repo := func() *user.Repository {
		return &user.Repository{Name: "canvas", FullName: "octocat/canvas", FilePath: "activity.log"}
	}

	eligible := &user.User{
		Username: "eligible", Email: "eligible@example.com",
		Tier: user.TierElevated, IsActive: true,
		Settings: user.CommitSettings{Time: "12:00", Timezone: "UTC", EnableAutoCommits: true},
	}
	optedOut := &user.User{
		Username: "opted-out", Email: "opted-out@example.com",
		Tier: user.TierElevated, IsActive: true,
		Settings: user.CommitSettings{Time: "12:00", Timezone: "UTC", EnableAutoCommits: false},
	}
	noRepo := &user.User{
		Username: "no-repo", Email: "no-repo@example.com",
		Tier: user.TierElevated, IsActive: true,
		Settings: user.CommitSettings{Time: "12:00", Timezone: "UTC", EnableAutoCommits: true},
	}
	wrongTier := &user.User{
		Username: "standard", Email: "standard@example.com",
		Tier: user.TierStandard, IsActive: true,
		Settings: user.CommitSettings{Time: "12:00", Timezone: "UTC", EnableAutoCommits: true},
	}
	inactive := &user.User{
		Username: "inactive", Email: "inactive@example.com",
		Tier: user.TierElevated, IsActive: false,
		Settings: user.CommitSettings{Time: "12:00", Timezone: "UTC", EnableAutoCommits: true},
	}

	for _, u := range []*user.User{eligible, optedOut, noRepo, wrongTier, inactive} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	for _, u := range []*user.User{eligible, optedOut, wrongTier, inactive} {
		if err := users.SetActiveRepository(ctx, u.ID, repo()); err != nil {
			t.Fatal(err)
		}
	}

	got, err := users.ListAutoCommitCandidates(ctx, user.TierElevated)
	if err != nil {
		t.Fatalf("ListAutoCommitCandidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}
	if got[0].Username != "eligible" {
		t.Errorf("candidate = %q", got[0].Username)
	}
	if got[0].ActiveRepo == nil {
		t.Error("candidate must carry its active repository")
	}

	standard, err := users.ListAutoCommitCandidates(ctx, user.TierStandard)
	if err != nil {
		t.Fatal(err)
	}
	if len(standard) != 1 || standard[0].Username != "standard" {
		t.Errorf("standard candidates = %+v", standard)
	}
}
