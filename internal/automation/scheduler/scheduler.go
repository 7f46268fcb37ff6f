// Package scheduler plans schedule fire times, materializes due schedules
// into runs, and feeds queued account runs to the executor.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/planner"
	"github.com/syncsocial/syncsocial/internal/automation/queue"
	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/events"
	"github.com/syncsocial/syncsocial/internal/events/bus"
	"github.com/syncsocial/syncsocial/internal/subscription"
)

// Common errors
var (
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// RunExecutor starts account runs. Execute returns once the run has been
// accepted; the actual work happens on the executor's own goroutines.
type RunExecutor interface {
	CanExecute() bool
	Execute(ctx context.Context, accountRunID string) error
	ActiveCount() int
}

// Config holds scheduler configuration
type Config struct {
	TickInterval time.Duration // How often to scan for due schedules
	QueueSize    int           // Max queued account runs, 0 = unbounded
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		TickInterval: 30 * time.Second,
		QueueSize:    0,
	}
}

// Status contains scheduler statistics for status endpoints.
type Status struct {
	QueuedRuns       int
	ActiveExecutions int
	TotalFired       int64
	TotalSkipped     int64
}

// Scheduler owns the periodic scan loop and the dispatch queue.
type Scheduler struct {
	store    *store.Store
	queue    *queue.RunQueue
	executor RunExecutor
	bus      bus.EventBus
	gate     *subscription.Gate
	logger   *logger.Logger
	config   Config

	totalFired   int64
	totalSkipped int64

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	notifyCh chan struct{}
	wg       sync.WaitGroup
}

// New creates a scheduler.
func New(st *store.Store, exec RunExecutor, eventBus bus.EventBus, log *logger.Logger, config Config) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}
	return &Scheduler{
		store:    st,
		queue:    queue.NewRunQueue(config.QueueSize),
		executor: exec,
		bus:      eventBus,
		gate:     subscription.NewGate(st),
		logger:   log.WithFields(zap.String("component", "scheduler")),
		config:   config,
	}
}

// Start recovers pending account runs from the database and begins the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.notifyCh = make(chan struct{}, 1)
	s.mu.Unlock()

	if err := s.recoverQueue(ctx); err != nil {
		s.logger.Error("failed to recover pending account runs", zap.Error(err))
	}

	s.logger.Info("scheduler starting",
		zap.Duration("tick_interval", s.config.TickInterval),
		zap.Int("recovered_runs", s.queue.Len()))

	s.wg.Add(1)
	go s.processLoop(ctx)

	return nil
}

// Stop stops the scheduler loop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetStatus returns current scheduler statistics.
func (s *Scheduler) GetStatus() *Status {
	return &Status{
		QueuedRuns:       s.queue.Len(),
		ActiveExecutions: s.executor.ActiveCount(),
		TotalFired:       atomic.LoadInt64(&s.totalFired),
		TotalSkipped:     atomic.LoadInt64(&s.totalSkipped),
	}
}

// EnqueueAccountRun queues an account run for execution and wakes the
// dispatch loop. Used by the run-now path; scheduled fires enqueue directly.
func (s *Scheduler) EnqueueAccountRun(run queue.QueuedRun) error {
	if err := s.queue.Enqueue(run); err != nil {
		return err
	}
	s.notify()
	return nil
}

// TriggerRun materializes a run for the given strategy and accounts outside
// of the tick loop, optionally linked to a schedule (run-now). It returns
// the created run with its account runs queued.
func (s *Scheduler) TriggerRun(ctx context.Context, strategy *models.Strategy, scheduleID *string, accounts []*models.SocialAccount, triggeredBy string) (*models.Run, error) {
	run, err := s.materializeRun(ctx, strategy, scheduleID, triggeredBy, accounts)
	if err != nil {
		return nil, err
	}
	s.notify()
	return run, nil
}

func (s *Scheduler) notify() {
	s.mu.RLock()
	ch := s.notifyCh
	running := s.running
	s.mu.RUnlock()
	if !running || ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// recoverQueue reloads account runs that were queued when the process last
// stopped. The database is the durable queue; this rebuilds dispatch order.
func (s *Scheduler) recoverQueue(ctx context.Context) error {
	ids, err := s.store.ListQueuedAccountRunIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.queue.Enqueue(queue.QueuedRun{AccountRunID: id}); err != nil {
			s.logger.Warn("failed to re-queue account run",
				zap.String("account_run_id", id),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) processLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler processing loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping due to context cancellation")
			return
		case <-s.stopCh:
			s.logger.Info("scheduler stopping due to stop signal")
			return
		case <-ticker.C:
			s.tick(ctx)
		case <-s.notifyCh:
			s.dispatch(ctx)
		}
	}
}

// tick is one full scan: plan new schedules, fire due ones, dispatch.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	s.planUnscheduled(ctx, now)
	s.fireDue(ctx, now)
	s.dispatch(ctx)
}

// planUnscheduled stamps a next fire time on enabled non-manual schedules
// that have never been planned.
func (s *Scheduler) planUnscheduled(ctx context.Context, now time.Time) {
	schedules, err := s.store.ListUnplannedSchedules(ctx)
	if err != nil {
		s.logger.Error("failed to list unplanned schedules", zap.Error(err))
		return
	}
	for _, sc := range schedules {
		next := planner.NextFire(sc.Frequency, sc.ScheduleSpec, sc.RandomConfig, now)
		if next == nil {
			continue
		}
		if err := s.store.SetScheduleNextRunAt(ctx, sc.ID, next); err != nil {
			s.logger.Error("failed to plan schedule",
				zap.String("schedule_id", sc.ID),
				zap.Error(err))
			continue
		}
		s.logger.Debug("planned schedule",
			zap.String("schedule_id", sc.ID),
			zap.Time("next_run_at", *next))
	}
}

// fireDue claims due schedules and materializes a run for each.
func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	due, err := s.store.ClaimDueSchedules(ctx, now)
	if err != nil {
		s.logger.Error("failed to claim due schedules", zap.Error(err))
		return
	}
	for _, sc := range due {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}
		s.fireSchedule(ctx, sc, now)
	}
}

func (s *Scheduler) fireSchedule(ctx context.Context, sc *models.Schedule, now time.Time) {
	log := s.logger.WithWorkspaceID(sc.WorkspaceID).WithFields(zap.String("schedule_id", sc.ID))

	advance := func() {
		next := planner.NextFire(sc.Frequency, sc.ScheduleSpec, sc.RandomConfig, now)
		if err := s.store.AdvanceSchedule(ctx, sc.ID, next, now); err != nil {
			log.Error("failed to advance schedule", zap.Error(err))
		}
	}

	strategy, err := s.store.GetStrategy(ctx, sc.StrategyID)
	if err != nil {
		log.Error("failed to load strategy for schedule", zap.Error(err))
		advance()
		return
	}
	if strategy == nil || strategy.WorkspaceID != sc.WorkspaceID {
		log.Warn("schedule references missing strategy", zap.String("strategy_id", sc.StrategyID))
		advance()
		return
	}

	// Back-pressure: one in-flight run per schedule.
	active, err := s.store.HasActiveRunForSchedule(ctx, sc.ID)
	if err != nil {
		log.Error("failed to check active runs for schedule", zap.Error(err))
		advance()
		return
	}
	if active {
		// Do not stamp or advance: the schedule stays due and fires on the
		// first tick after the in-flight run finishes.
		log.Info("skipping schedule fire, previous run still active")
		atomic.AddInt64(&s.totalSkipped, 1)
		return
	}

	if planner.ShouldSkip(sc.RandomConfig) {
		log.Info("skipping schedule fire by skip probability")
		atomic.AddInt64(&s.totalSkipped, 1)
		advance()
		return
	}

	accounts, err := s.selectAccounts(ctx, sc, strategy)
	if err != nil {
		log.Error("failed to resolve account selector", zap.Error(err))
		advance()
		return
	}
	if len(accounts) == 0 {
		log.Info("schedule fired with no eligible accounts")
		advance()
		return
	}

	scheduleID := sc.ID
	run, err := s.materializeRun(ctx, strategy, &scheduleID, "schedule", accounts)
	if err != nil {
		log.Error("failed to materialize run for schedule", zap.Error(err))
		advance()
		return
	}

	atomic.AddInt64(&s.totalFired, 1)
	log.Info("schedule fired",
		zap.String("run_id", run.ID),
		zap.Int("accounts", len(accounts)))

	s.publish(ctx, events.ScheduleFired, map[string]any{
		"schedule_id":  sc.ID,
		"workspace_id": sc.WorkspaceID,
		"run_id":       run.ID,
	})

	advance()
}

// selectAccounts resolves the schedule's account selector against the
// workspace: an explicit `ids` list wins, then `all: true` takes every
// account, and anything else takes healthy accounts. Every branch is
// filtered to the strategy's platform.
func (s *Scheduler) selectAccounts(ctx context.Context, sc *models.Schedule, strategy *models.Strategy) ([]*models.SocialAccount, error) {
	selector := sc.AccountSelector
	if selector == nil {
		selector = map[string]any{}
	}

	var accounts []*models.SocialAccount
	var err error
	switch {
	case len(stringSlice(selector["ids"])) > 0:
		accounts, err = s.store.ListSocialAccountsByIDs(ctx, sc.WorkspaceID, stringSlice(selector["ids"]))
	case selector["all"] == true:
		accounts, err = s.store.ListSocialAccounts(ctx, sc.WorkspaceID)
	default:
		accounts, err = s.store.ListHealthySocialAccounts(ctx, sc.WorkspaceID)
	}
	if err != nil {
		return nil, err
	}
	return filterPlatform(accounts, strategy.PlatformKey), nil
}

// materializeRun creates the run and one queued account run per account,
// then places each account run on the dispatch queue.
func (s *Scheduler) materializeRun(ctx context.Context, strategy *models.Strategy, scheduleID *string, triggeredBy string, accounts []*models.SocialAccount) (*models.Run, error) {
	run := &models.Run{
		WorkspaceID: strategy.WorkspaceID,
		ScheduleID:  scheduleID,
		StrategyID:  strategy.ID,
		TriggeredBy: &triggeredBy,
		Status:      models.RunStatusQueued,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	s.publish(ctx, events.RunCreated, map[string]any{
		"run_id":       run.ID,
		"workspace_id": run.WorkspaceID,
		"strategy_id":  strategy.ID,
	})

	for _, acc := range accounts {
		ar := &models.AccountRun{
			WorkspaceID:     run.WorkspaceID,
			RunID:           run.ID,
			SocialAccountID: acc.ID,
			Status:          models.AccountRunQueued,
		}
		if err := s.store.CreateAccountRun(ctx, ar); err != nil {
			s.logger.Error("failed to create account run",
				zap.String("run_id", run.ID),
				zap.String("social_account_id", acc.ID),
				zap.Error(err))
			continue
		}

		s.publish(ctx, events.AccountRunQueued, map[string]any{
			"account_run_id":    ar.ID,
			"run_id":            run.ID,
			"workspace_id":      run.WorkspaceID,
			"social_account_id": acc.ID,
		})

		// Best effort: the database row is the durable queue entry.
		if err := s.queue.Enqueue(queue.QueuedRun{
			AccountRunID: ar.ID,
			WorkspaceID:  run.WorkspaceID,
			RunID:        run.ID,
		}); err != nil {
			s.logger.Warn("failed to queue account run for dispatch",
				zap.String("account_run_id", ar.ID),
				zap.Error(err))
		}
	}

	return run, nil
}

// dispatch drains the queue into the executor while it has capacity.
// Account runs whose run is already at its parallel session cap are held
// back and re-queued for the next pass.
func (s *Scheduler) dispatch(ctx context.Context) {
	// Limits and started counts are cached per pass so one pass cannot
	// push a run past its cap through stale database counts.
	limits := make(map[string]int)
	started := make(map[string]int)
	var deferred []queue.QueuedRun

	for s.executor.CanExecute() {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		qr := s.queue.Dequeue()
		if qr == nil {
			break
		}

		if !s.withinParallelLimit(ctx, qr, limits, started) {
			deferred = append(deferred, *qr)
			continue
		}

		if err := s.executor.Execute(ctx, qr.AccountRunID); err != nil {
			s.logger.Error("failed to start account run",
				zap.String("account_run_id", qr.AccountRunID),
				zap.Error(err))
			// Leave the database row queued; it is retried on restart.
			continue
		}

		started[qr.RunID]++
		s.logger.Debug("dispatched account run",
			zap.String("account_run_id", qr.AccountRunID))
	}

	// QueuedAt is preserved, so held-back runs keep their queue position.
	for _, qr := range deferred {
		if err := s.queue.Enqueue(qr); err != nil {
			s.logger.Warn("failed to re-queue account run held at parallel limit",
				zap.String("account_run_id", qr.AccountRunID),
				zap.Error(err))
		}
	}
}

// withinParallelLimit reports whether starting qr now would keep its run at
// or under the workspace's effective parallel session cap. Runs that were
// not created from a schedule are uncapped, as are lookups that fail.
func (s *Scheduler) withinParallelLimit(ctx context.Context, qr *queue.QueuedRun, limits, started map[string]int) bool {
	if qr.RunID == "" {
		return true
	}

	limit, ok := limits[qr.RunID]
	if !ok {
		limit = s.resolveParallelLimit(ctx, qr)
		limits[qr.RunID] = limit
	}
	if limit <= 0 {
		return true
	}

	running, err := s.store.CountRunningAccountRuns(ctx, qr.RunID)
	if err != nil {
		s.logger.Warn("failed to count running account runs",
			zap.String("run_id", qr.RunID),
			zap.Error(err))
		return true
	}
	return running+started[qr.RunID] < limit
}

// resolveParallelLimit returns the effective parallel cap for the run's
// schedule, or 0 when the run has no cap.
func (s *Scheduler) resolveParallelLimit(ctx context.Context, qr *queue.QueuedRun) int {
	run, err := s.store.GetRun(ctx, qr.RunID)
	if err != nil || run == nil || run.ScheduleID == nil {
		return 0
	}
	sched, err := s.store.GetSchedule(ctx, *run.ScheduleID)
	if err != nil || sched == nil {
		return 0
	}
	limit, err := s.gate.ParallelLimit(ctx, run.WorkspaceID, sched.MaxParallel)
	if err != nil {
		s.logger.Warn("failed to resolve parallel limit",
			zap.String("run_id", qr.RunID),
			zap.Error(err))
		return 0
	}
	return limit
}

func filterPlatform(accounts []*models.SocialAccount, platformKey string) []*models.SocialAccount {
	var out []*models.SocialAccount
	for _, acc := range accounts {
		if acc.PlatformKey == platformKey {
			out = append(out, acc)
		}
	}
	return out
}

func stringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (s *Scheduler) publish(ctx context.Context, eventType string, data map[string]any) {
	if s.bus == nil {
		return
	}
	subject := eventType
	if eventType == events.AccountRunQueued {
		if id, ok := data["account_run_id"].(string); ok && id != "" {
			subject = eventType + "." + id
		}
	}
	if err := s.bus.Publish(ctx, subject, bus.NewEvent(eventType, "scheduler", data)); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
