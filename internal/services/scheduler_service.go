package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nikhilbhatia/commitcanvas/internal/config"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/commit"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/logger"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/metrics"
)

// Cadence names, used for registry keys, logs and metrics labels.
const (
	CadenceDailyBatch   = "daily_batch"
	CadenceWindowCheck  = "window_check"
	CadenceRetrySweep   = "retry_sweep"
	CadenceCleanupSweep = "cleanup_sweep"
)

// windowTolerance is how far either side of the configured time the
// elevated-tier window check still fires.
const windowTolerance = 5 * time.Minute

// staleAfter is how long a record may sit in pending before the retry
// sweep treats it as a failed attempt.
const staleAfter = time.Hour

// SchedulerState tracks the one-way lifecycle of the dispatcher.
type SchedulerState string

const (
	StateUninitialized SchedulerState = "uninitialized"
	StateInitialized   SchedulerState = "initialized"
	StateRunning       SchedulerState = "running"
)

// SchedulerStatus is the externally visible scheduler state.
type SchedulerStatus struct {
	Initialized    bool      `json:"initialized"`
	Running        bool      `json:"running"`
	ActiveCadences []string  `json:"active_cadences"`
	Now            time.Time `json:"now"`
	Timezone       string    `json:"timezone"`
}

// SchedulerService fires the four cadences and fans out to the
// orchestrator. Within one cadence pass candidates are processed
// sequentially; a failure on one user is counted and skipped, never
// aborting the pass.
type SchedulerService struct {
	cfg          config.SchedulerConfig
	users        user.Store
	records      commit.Store
	orchestrator Orchestrator
	logger       *logger.Logger
	clock        Clock
	location     *time.Location

	mu      sync.Mutex
	state   SchedulerState
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

// NewSchedulerService creates the dispatcher. Call Init then Start.
func NewSchedulerService(
	cfg config.SchedulerConfig,
	users user.Store,
	records commit.Store,
	orchestrator Orchestrator,
	log *logger.Logger,
	clock Clock,
) (*SchedulerService, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
	}
	if clock == nil {
		clock = NewRealClock()
	}
	return &SchedulerService{
		cfg:          cfg,
		users:        users,
		records:      records,
		orchestrator: orchestrator,
		logger:       log,
		clock:        clock,
		location:     loc,
		state:        StateUninitialized,
		entries:      make(map[string]cron.EntryID),
	}, nil
}

// Init registers the four cadences. Re-initializing an initialized
// scheduler is a no-op with a warning, not an error.
func (s *SchedulerService) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		s.logger.Warn("Scheduler already initialized, ignoring")
		return nil
	}

	s.cron = cron.New(cron.WithLocation(s.location))

	cadences := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{CadenceDailyBatch, s.cfg.DailyBatchCron, s.RunDailyBatch},
		{CadenceWindowCheck, s.cfg.WindowCheckCron, s.RunWindowCheck},
		{CadenceRetrySweep, s.cfg.RetrySweepCron, s.RunRetrySweep},
		{CadenceCleanupSweep, s.cfg.CleanupSweepCron, s.RunCleanupSweep},
	}

	for _, c := range cadences {
		run := c.run
		id, err := s.cron.AddFunc(c.spec, func() {
			run(context.Background())
		})
		if err != nil {
			s.cron = nil
			s.entries = make(map[string]cron.EntryID)
			return fmt.Errorf("failed to register cadence %s (%q): %w", c.name, c.spec, err)
		}
		s.entries[c.name] = id
	}

	s.state = StateInitialized
	s.logger.WithFields(map[string]interface{}{
		"cadences": len(s.entries),
		"timezone": s.cfg.Timezone,
	}).Info("Scheduler initialized")
	return nil
}

// Start begins firing cadences.
func (s *SchedulerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUninitialized:
		return fmt.Errorf("scheduler is not initialized")
	case StateRunning:
		s.logger.Warn("Scheduler already running, ignoring")
		return nil
	}

	s.cron.Start()
	s.state = StateRunning
	s.logger.Info("Scheduler started")
	return nil
}

// Stop halts all cadences and returns the scheduler to uninitialized.
// Idempotent; in-flight passes are allowed to complete.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return
	}

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
	s.entries = make(map[string]cron.EntryID)
	s.state = StateUninitialized
	s.logger.Info("Scheduler stopped")
}

// State returns the current lifecycle state.
func (s *SchedulerService) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status reports the dispatcher's externally visible state.
func (s *SchedulerService) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	cadences := make([]string, 0, len(s.entries))
	for name := range s.entries {
		cadences = append(cadences, name)
	}
	sort.Strings(cadences)

	return SchedulerStatus{
		Initialized:    s.state != StateUninitialized,
		Running:        s.state == StateRunning,
		ActiveCadences: cadences,
		Now:            s.clock.Now().In(s.location),
		Timezone:       s.cfg.Timezone,
	}
}

// RunDailyBatch produces one automatic commit for every eligible
// standard-tier user. Users whose trial expired or who already committed
// today are skipped.
func (s *SchedulerService) RunDailyBatch(ctx context.Context) {
	metrics.RecordSchedulerPass(CadenceDailyBatch)
	now := s.clock.Now()

	candidates, err := s.users.ListAutoCommitCandidates(ctx, user.TierStandard)
	if err != nil {
		s.logger.ErrorWithErr(err, "Daily batch: failed to list candidates")
		return
	}

	var produced, skipped, failed int
	for _, u := range candidates {
		if !u.CanAutoCommit(now) {
			skipped++
			continue
		}
		done, err := s.records.HasSuccessForDay(ctx, u.ID, commit.KindAuto, now)
		if err != nil {
			s.countItemFailure(CadenceDailyBatch, u.ID, err)
			failed++
			continue
		}
		if done {
			skipped++
			continue
		}

		if err := s.produceFor(ctx, u, CadenceDailyBatch); err != nil {
			failed++
			continue
		}
		produced++
	}

	s.logger.WithFields(map[string]interface{}{
		"candidates": len(candidates),
		"produced":   produced,
		"skipped":    skipped,
		"failed":     failed,
	}).Info("Daily batch completed")
}

// RunWindowCheck fires automatic commits for elevated users whose
// configured time of day matches the current time within the tolerance
// window, at most once per day per user.
func (s *SchedulerService) RunWindowCheck(ctx context.Context) {
	metrics.RecordSchedulerPass(CadenceWindowCheck)
	now := s.clock.Now()

	candidates, err := s.users.ListAutoCommitCandidates(ctx, user.TierElevated)
	if err != nil {
		s.logger.ErrorWithErr(err, "Window check: failed to list candidates")
		return
	}

	var produced, failed int
	for _, u := range candidates {
		if !u.CanAutoCommit(now) {
			continue
		}

		local := now.In(u.Settings.Location())
		if !matchesWindow(local, u.Settings.Time, windowTolerance) {
			continue
		}

		done, err := s.records.HasSuccessForDay(ctx, u.ID, commit.KindAuto, local)
		if err != nil {
			s.countItemFailure(CadenceWindowCheck, u.ID, err)
			failed++
			continue
		}
		if done {
			continue
		}

		if err := s.produceFor(ctx, u, CadenceWindowCheck); err != nil {
			failed++
			continue
		}
		produced++
	}

	if produced > 0 || failed > 0 {
		s.logger.WithFields(map[string]interface{}{
			"produced": produced,
			"failed":   failed,
		}).Info("Window check completed")
	}
}

// RunRetrySweep re-executes failed records that still have retry budget.
// Records stuck in pending past their invocation lifetime are first
// marked failed, then retried like any other failure.
func (s *SchedulerService) RunRetrySweep(ctx context.Context) {
	metrics.RecordSchedulerPass(CadenceRetrySweep)

	records, err := s.records.ListRetryable(ctx, staleAfter)
	if err != nil {
		s.logger.ErrorWithErr(err, "Retry sweep: failed to list records")
		return
	}

	var retried, exhausted, failed int
	for _, rec := range records {
		if rec.Status == commit.StatusPending {
			if err := rec.MarkFailed(commit.Error{
				Message: "record stuck in pending past its invocation lifetime",
				Code:    errors.ErrCodeRemoteUnknown,
			}); err != nil {
				s.countItemFailure(CadenceRetrySweep, rec.UserID, err)
				continue
			}
			if err := s.records.Update(ctx, rec); err != nil {
				s.countItemFailure(CadenceRetrySweep, rec.UserID, err)
				continue
			}
		}

		if !rec.Retryable() {
			exhausted++
			continue
		}

		if err := s.retryRecord(ctx, rec); err != nil {
			failed++
		} else {
			retried++
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"records":   len(records),
		"retried":   retried,
		"failed":    failed,
		"exhausted": exhausted,
	}).Info("Retry sweep completed")
}

// RunCleanupSweep deletes terminal records past the retention window.
func (s *SchedulerService) RunCleanupSweep(ctx context.Context) {
	metrics.RecordSchedulerPass(CadenceCleanupSweep)

	retention := s.cfg.RetentionDays
	if retention <= 0 {
		retention = 30
	}
	cutoff := s.clock.Now().AddDate(0, 0, -retention)

	removed, err := s.records.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.ErrorWithErr(err, "Cleanup sweep failed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"removed": removed,
		"cutoff":  cutoff.Format("2006-01-02"),
	}).Info("Cleanup sweep completed")
}

// produceFor invokes the orchestrator for one user, containing panics and
// errors so the pass continues with the next candidate.
func (s *SchedulerService) produceFor(ctx context.Context, u *user.User, cadence string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while producing commit: %v", r)
			s.countItemFailure(cadence, u.ID, err)
		}
	}()

	if _, err = s.orchestrator.ProduceCommit(ctx, u, commit.KindAuto, cadence); err != nil {
		s.countItemFailure(cadence, u.ID, err)
	}
	return err
}

// retryRecord transitions a failed record to retrying and re-executes it.
func (s *SchedulerService) retryRecord(ctx context.Context, rec *commit.Record) error {
	u, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		s.countItemFailure(CadenceRetrySweep, rec.UserID, err)
		return err
	}

	if err := rec.Transition(commit.StatusRetrying); err != nil {
		s.countItemFailure(CadenceRetrySweep, rec.UserID, err)
		return err
	}
	if err := s.records.Update(ctx, rec); err != nil {
		s.countItemFailure(CadenceRetrySweep, rec.UserID, err)
		return err
	}

	if err := s.orchestrator.ExecuteRecord(ctx, rec, u); err != nil {
		s.countItemFailure(CadenceRetrySweep, rec.UserID, err)
		return err
	}
	return nil
}

func (s *SchedulerService) countItemFailure(cadence string, userID int64, err error) {
	metrics.RecordSchedulerItemError(cadence)
	s.logger.WithFields(map[string]interface{}{
		"cadence": cadence,
		"user_id": userID,
	}).WithError(err).Warn("Cadence item failed, continuing")
}

// matchesWindow reports whether now falls within tolerance of the
// configured HH:MM time of day. Malformed configuration never matches.
func matchesWindow(now time.Time, hhmm string, tolerance time.Duration) bool {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return false
	}

	target := time.Date(now.Year(), now.Month(), now.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, now.Location())

	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
