package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/nikhilbhatia/commitcanvas/internal/domain/commit"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
	"github.com/nikhilbhatia/commitcanvas/internal/github"
	"github.com/nikhilbhatia/commitcanvas/internal/pattern"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/logger"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/metrics"
)

// RemoteClient is the slice of the git provider client the orchestrator
// uses.
type RemoteClient interface {
	GetDefaultBranch(ctx context.Context, repoFullName string) string
	UpsertFile(ctx context.Context, repoFullName, path, content, message string, opts github.UpsertOptions) (*github.CommitResult, error)
	GetViewer(ctx context.Context) (*github.Identity, error)
}

// Orchestrator is the commit production surface the scheduler drives.
type Orchestrator interface {
	ProduceCommit(ctx context.Context, u *user.User, kind commit.Kind, trigger string) (*commit.Result, error)
	ExecuteRecord(ctx context.Context, rec *commit.Record, u *user.User) error
}

// patternAbortFraction is the failed fraction of planned items at which a
// pattern run aborts. Backfill and streak runs log-and-continue instead.
const patternAbortFraction = 0.20

// CommitService turns scheduling decisions into commit records and remote
// writes.
type CommitService struct {
	users    user.Store
	records  commit.Store
	remote   RemoteClient
	notifier Notifier
	logger   *logger.Logger
	clock    Clock

	// writeLimiter paces successive remote writes within bulk runs so a
	// run cannot trip provider rate limits.
	writeLimiter *rate.Limiter

	maxRetries     int
	defaultMessage string
}

// CommitServiceConfig tunes the orchestrator.
type CommitServiceConfig struct {
	WriteDelay     time.Duration
	MaxRetries     int
	DefaultMessage string
}

// NewCommitService creates the orchestrator.
func NewCommitService(
	users user.Store,
	records commit.Store,
	remote RemoteClient,
	notifier Notifier,
	log *logger.Logger,
	clock Clock,
	cfg CommitServiceConfig,
) *CommitService {
	if cfg.WriteDelay <= 0 {
		cfg.WriteDelay = 750 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = commit.DefaultMaxRetries
	}
	if cfg.DefaultMessage == "" {
		cfg.DefaultMessage = "Keep the streak alive"
	}
	if clock == nil {
		clock = NewRealClock()
	}
	return &CommitService{
		users:          users,
		records:        records,
		remote:         remote,
		notifier:       notifier,
		logger:         log,
		clock:          clock,
		writeLimiter:   rate.NewLimiter(rate.Every(cfg.WriteDelay), 1),
		maxRetries:     cfg.MaxRetries,
		defaultMessage: cfg.DefaultMessage,
	}
}

// ProduceCommit runs the full single-commit pipeline: eligibility, content
// generation, record creation, remote execution and outcome handling.
func (s *CommitService) ProduceCommit(ctx context.Context, u *user.User, kind commit.Kind, trigger string) (*commit.Result, error) {
	if u.ActiveRepo == nil {
		return nil, errors.NoActiveRepository()
	}

	now := s.clock.Now()

	if kind == commit.KindAuto {
		done, err := s.records.HasSuccessForDay(ctx, u.ID, commit.KindAuto, now)
		if err != nil {
			return nil, errors.DatabaseError("failed to check today's commits", err)
		}
		if done {
			// Idempotent no-op, not a failure.
			return &commit.Result{
				Success: true,
				Skipped: true,
				Reason:  errors.ErrCodeAlreadyCommitted,
			}, nil
		}
		if !u.CanAutoCommit(now) {
			return nil, errors.TrialExpired()
		}
	}

	content, contentType := generateContent(u, now)
	rec := &commit.Record{
		UserID:       u.ID,
		RepoFullName: u.ActiveRepo.FullName,
		FilePath:     u.ActiveRepo.FilePath,
		Message:      pickMessage(u, s.defaultMessage),
		Content:      content,
		ContentType:  contentType,
		Status:       commit.StatusPending,
		Kind:         kind,
		Trigger:      trigger,
		ScheduledFor: now,
		MaxRetries:   s.maxRetries,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, errors.DatabaseError("failed to create commit record", err)
	}

	if err := s.ExecuteRecord(ctx, rec, u); err != nil {
		return nil, err
	}

	return &commit.Result{Success: true, Commit: rec}, nil
}

// ExecuteRecord performs the remote write for an existing record and
// applies the outcome: status transition, streak side effects and the
// best-effort notification. Remote failures are recorded on the record
// and re-raised.
func (s *CommitService) ExecuteRecord(ctx context.Context, rec *commit.Record, u *user.User) error {
	if err := s.writeLimiter.Wait(ctx); err != nil {
		return errors.Internal("commit execution cancelled", err)
	}

	opts := github.UpsertOptions{}
	if s.isBackdated(rec) {
		date := rec.ScheduledFor
		opts.CustomDate = &date
		opts.Author = s.authorFor(ctx, u)
	}

	result, err := s.remote.UpsertFile(ctx, rec.RepoFullName, rec.FilePath, rec.Content, rec.Message, opts)
	if err != nil {
		metrics.RecordRemoteWrite("failure")
		s.recordFailure(ctx, rec, err)
		return err
	}
	metrics.RecordRemoteWrite("success")

	executedAt := s.clock.Now()
	if terr := rec.MarkSuccess(result.SHA, result.URL, executedAt); terr != nil {
		return errors.Internal("invalid record state", terr)
	}
	if uerr := s.records.Update(ctx, rec); uerr != nil {
		return errors.DatabaseError("failed to persist commit success", uerr)
	}
	metrics.RecordCommit(string(rec.Kind), string(rec.Status))

	s.applyStreak(ctx, u, rec.ScheduledFor)
	s.notify(ctx, u, rec, result)

	s.logger.WithFields(map[string]interface{}{
		"user_id":   u.ID,
		"record_id": rec.ID,
		"kind":      rec.Kind,
		"sha":       result.SHA,
	}).Info("Commit executed")

	return nil
}

// GeneratePastCommits backfills one commit per day across [from, to].
// Per-item failures are logged and counted; the run never aborts.
func (s *CommitService) GeneratePastCommits(ctx context.Context, u *user.User, from, to time.Time) (*commit.Result, error) {
	if u.ActiveRepo == nil {
		return nil, errors.NoActiveRepository()
	}
	if to.Before(from) {
		return nil, errors.ValidationError("end date must not precede start date", nil)
	}
	if to.After(s.clock.Now()) {
		return nil, errors.ValidationError("backfill range must lie in the past", nil)
	}

	var dates []time.Time
	for d := dayOf(from); !d.After(dayOf(to)); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Add(randomDayTime()))
	}

	created, failed := s.runBulk(ctx, u, dates, commit.KindBackfill, "backfill", -1)
	return &commit.Result{
		Success:        created > 0 || len(dates) == 0,
		CommitsCreated: created,
		CommitsFailed:  failed,
	}, nil
}

// GenerateStreakCommits fabricates commits on the given dates. With force
// set, existing records in the covered range are deleted first so the
// range is regenerated from scratch.
func (s *CommitService) GenerateStreakCommits(ctx context.Context, u *user.User, dates []time.Time, force bool) (*commit.Result, error) {
	if u.ActiveRepo == nil {
		return nil, errors.NoActiveRepository()
	}
	if len(dates) == 0 {
		return nil, errors.ValidationError("at least one date is required", nil)
	}

	scheduled := make([]time.Time, len(dates))
	for i, d := range dates {
		scheduled[i] = dayOf(d).Add(randomDayTime())
	}

	if force {
		min, max := scheduled[0], scheduled[0]
		for _, d := range scheduled {
			if d.Before(min) {
				min = d
			}
			if d.After(max) {
				max = d
			}
		}
		if _, err := s.records.DeleteForUserRange(ctx, u.ID, dayOf(min), dayOf(max).AddDate(0, 0, 1)); err != nil {
			return nil, errors.DatabaseError("failed to clear existing records", err)
		}
	}

	created, failed := s.runBulk(ctx, u, scheduled, commit.KindBackfill, "streak_maintenance", -1)
	return &commit.Result{
		Success:        created > 0,
		CommitsCreated: created,
		CommitsFailed:  failed,
	}, nil
}

// PatternOptions carries the rendering knobs across the orchestration
// boundary.
type PatternOptions struct {
	Intensity int
	Alignment string
	Spacing   int
}

// plan renders the text and expands it into the scheduled timestamps.
func (o PatternOptions) plan(text string, endDate time.Time) ([]time.Time, error) {
	grid, err := pattern.RenderText(text, pattern.Options{
		Intensity: o.Intensity,
		Alignment: pattern.Alignment(o.Alignment),
		Spacing:   o.Spacing,
	})
	if err != nil {
		return nil, err
	}

	items := pattern.GridToDates(grid, endDate)
	dates := make([]time.Time, len(items))
	for i, item := range items {
		dates[i] = item.Date
	}
	return dates, nil
}

// GeneratePatternCommits renders text onto the contribution graph by
// fabricating backdated commits for every lit cell. The run aborts once
// failures exceed 20% of the planned items.
func (s *CommitService) GeneratePatternCommits(ctx context.Context, u *user.User, text string, opts PatternOptions, endDate time.Time) (*commit.Result, error) {
	if u.ActiveRepo == nil {
		return nil, errors.NoActiveRepository()
	}

	dates, err := opts.plan(text, endDate)
	if err != nil {
		return nil, err
	}

	planned := len(dates)
	abortAfter := int(float64(planned) * patternAbortFraction)

	created, failed := s.runBulk(ctx, u, dates, commit.KindPattern, "pattern", abortAfter)
	if failed > abortAfter {
		return &commit.Result{
				Success:        false,
				CommitsCreated: created,
				CommitsFailed:  failed,
			}, errors.Internal(
				fmt.Sprintf("pattern run aborted: %d of %d planned commits failed", failed, planned), nil)
	}

	return &commit.Result{
		Success:        true,
		CommitsCreated: created,
		CommitsFailed:  failed,
	}, nil
}

// runBulk applies the single-commit primitive across scheduled dates in
// chronological order (required for a valid ancestry chain of backdated
// commits). abortAfter < 0 disables the abort threshold. Conflicts and
// other per-item failures are counted, not raised.
func (s *CommitService) runBulk(ctx context.Context, u *user.User, dates []time.Time, kind commit.Kind, trigger string, abortAfter int) (created, failed int) {
	sortTimes(dates)

	for _, date := range dates {
		rec := &commit.Record{
			UserID:       u.ID,
			RepoFullName: u.ActiveRepo.FullName,
			FilePath:     u.ActiveRepo.FilePath,
			Message:      pickMessage(u, s.defaultMessage),
			Status:       commit.StatusPending,
			Kind:         kind,
			Trigger:      trigger,
			ScheduledFor: date,
			MaxRetries:   s.maxRetries,
		}
		rec.Content, rec.ContentType = generateContent(u, date)

		if err := s.records.Create(ctx, rec); err != nil {
			s.logger.WithError(err).Warn("Failed to create bulk commit record, skipping item")
			failed++
			continue
		}

		if err := s.ExecuteRecord(ctx, rec, u); err != nil {
			failed++
			if github.IsConflict(err) {
				s.logger.WithFields(map[string]interface{}{
					"user_id": u.ID,
					"date":    date,
				}).Warn("Branch moved during bulk run, continuing")
			} else {
				s.logger.WithError(err).Warnf("Bulk commit for %s failed, continuing", date.Format("2006-01-02"))
			}
			if abortAfter >= 0 && failed > abortAfter {
				return created, failed
			}
			continue
		}
		created++
	}
	return created, failed
}

// recordFailure marks the record failed with a structured error. Records
// already in a terminal state are left untouched.
func (s *CommitService) recordFailure(ctx context.Context, rec *commit.Record, cause error) {
	recErr := commit.Error{
		Message: cause.Error(),
		Code:    errors.CodeOf(cause),
	}
	var appErr *errors.AppError
	if stderrors.As(cause, &appErr) && appErr.Details != nil {
		recErr.Details = appErr.Details
	}

	if terr := rec.MarkFailed(recErr); terr != nil {
		s.logger.WithError(terr).Warn("Could not mark record failed")
		return
	}
	if uerr := s.records.Update(ctx, rec); uerr != nil {
		s.logger.ErrorWithErr(uerr, "Failed to persist commit failure")
	}
	metrics.RecordCommit(string(rec.Kind), string(rec.Status))
}

// applyStreak updates the user's streak counters after a successful
// commit: consecutive-day commits extend the streak, a forward gap resets
// it, and the longest-streak high-water mark never decreases. Commits on
// or before the last commit day (same-day repeats and backdated items)
// leave the live streak untouched.
func (s *CommitService) applyStreak(ctx context.Context, u *user.User, at time.Time) {
	day := dayOf(at)

	u.TotalCommits++
	switch {
	case u.LastCommitDate == nil:
		u.CurrentStreak = 1
	default:
		gap := int(day.Sub(dayOf(*u.LastCommitDate)).Hours() / 24)
		switch {
		case gap <= 0:
			// Same-day repeat or backdated item: streak unchanged.
		case gap == 1:
			u.CurrentStreak++
		default:
			u.CurrentStreak = 1
		}
	}
	if u.CurrentStreak > u.LongestStreak {
		u.LongestStreak = u.CurrentStreak
	}
	if u.LastCommitDate == nil || day.After(dayOf(*u.LastCommitDate)) {
		u.LastCommitDate = &day
	}

	if err := s.users.Update(ctx, u); err != nil {
		s.logger.ErrorWithErr(err, "Failed to persist streak counters")
	}
}

// notify emits the best-effort notification for elevated users with
// notifications enabled. A notifier failure never fails the commit.
func (s *CommitService) notify(ctx context.Context, u *user.User, rec *commit.Record, result *github.CommitResult) {
	if s.notifier == nil || !u.IsElevated() || !u.Settings.EnableEmailNotifications {
		return
	}
	if err := s.notifier.SendCommitNotification(ctx, u, rec, result); err != nil {
		s.logger.WithError(err).Warn("Commit notification failed")
	}
}

// authorFor resolves the identity stamped on backdated commits: the
// verified remote identity when reachable, the profile otherwise.
func (s *CommitService) authorFor(ctx context.Context, u *user.User) *github.Identity {
	if viewer, err := s.remote.GetViewer(ctx); err == nil {
		return viewer
	}
	name := u.FullName
	if name == "" {
		name = u.Username
	}
	return &github.Identity{Name: name, Email: u.Email}
}

// isBackdated reports whether the record's scheduled moment is far enough
// from now that the low-level custom-date commit path is required.
func (s *CommitService) isBackdated(rec *commit.Record) bool {
	if rec.Kind == commit.KindBackfill || rec.Kind == commit.KindPattern {
		return true
	}
	return dayOf(rec.ScheduledFor).Before(dayOf(s.clock.Now()))
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sortTimes(ts []time.Time) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}
