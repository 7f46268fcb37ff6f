// Package executor runs account runs end to end: it claims the row, builds
// the action plan, drives the browser cluster, and records the outcome.
package executor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/planner"
	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/crypto"
	"github.com/syncsocial/syncsocial/internal/events"
	"github.com/syncsocial/syncsocial/internal/events/bus"
)

// Config holds executor configuration
type Config struct {
	MaxConcurrent int    // Max account runs in flight
	ArtifactsDir  string // Root directory for screenshot artifacts
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 3,
	}
}

// Executor processes account runs against the browser cluster.
type Executor struct {
	store   *store.Store
	cluster cluster.BrowserCluster
	vault   *crypto.Vault
	bus     bus.EventBus
	logger  *logger.Logger
	config  Config

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

// New creates an executor. vault may be nil when no credential key is
// configured; every account run then fails with CREDENTIAL_DECRYPT_FAILED.
func New(st *store.Store, cl cluster.BrowserCluster, vault *crypto.Vault, eventBus bus.EventBus, log *logger.Logger, config Config) *Executor {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Executor{
		store:   st,
		cluster: cl,
		vault:   vault,
		bus:     eventBus,
		logger:  log.WithFields(zap.String("component", "executor")),
		config:  config,
		active:  make(map[string]struct{}),
	}
}

// CanExecute reports whether there is a free execution slot.
func (e *Executor) CanExecute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active) < e.config.MaxConcurrent
}

// ActiveCount returns the number of account runs in flight.
func (e *Executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Execute starts processing an account run on a worker goroutine. It returns
// immediately; duplicate submissions while the run is in flight are ignored.
func (e *Executor) Execute(ctx context.Context, accountRunID string) error {
	e.mu.Lock()
	if _, inFlight := e.active[accountRunID]; inFlight {
		e.mu.Unlock()
		return nil
	}
	e.active[accountRunID] = struct{}{}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.active, accountRunID)
			e.mu.Unlock()
		}()
		e.executeAccountRun(ctx, accountRunID)
	}()

	return nil
}

// Wait blocks until all in-flight account runs have finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) executeAccountRun(ctx context.Context, accountRunID string) {
	log := e.logger.WithAccountRunID(accountRunID)
	now := time.Now().UTC()

	ar, err := e.store.GetAccountRun(ctx, accountRunID)
	if err != nil {
		log.Error("failed to load account run", zap.Error(err))
		return
	}
	if ar == nil {
		return
	}
	if ar.Status != models.AccountRunQueued && ar.Status != models.AccountRunRetryWaiting {
		return
	}

	run, err := e.store.GetRun(ctx, ar.RunID)
	if err != nil || run == nil {
		log.Error("failed to load run for account run", zap.Error(err))
		return
	}
	log = log.WithWorkspaceID(ar.WorkspaceID).WithRunID(run.ID)

	strategy, err := e.store.GetStrategy(ctx, run.StrategyID)
	if err != nil {
		log.Error("failed to load strategy", zap.Error(err))
		e.failAccountRun(ctx, ar, run, models.ErrCodeStrategyNotFound)
		return
	}
	if strategy == nil {
		e.failAccountRun(ctx, ar, run, models.ErrCodeStrategyNotFound)
		return
	}

	claimed, err := e.store.ClaimAccountRun(ctx, ar.ID, now)
	if err != nil {
		log.Error("failed to claim account run", zap.Error(err))
		return
	}
	if !claimed {
		// Another worker got here first.
		return
	}
	ar.Status = models.AccountRunRunning
	ar.StartedAt = &now

	e.publish(ctx, events.AccountRunStarted, map[string]any{
		"account_run_id": ar.ID,
		"run_id":         run.ID,
		"workspace_id":   ar.WorkspaceID,
	})

	if run.Status == models.RunStatusQueued {
		if err := e.store.MarkRunRunning(ctx, run.ID, now); err != nil {
			log.Error("failed to mark run running", zap.Error(err))
		} else {
			run.Status = models.RunStatusRunning
			e.publish(ctx, events.RunStarted, map[string]any{
				"run_id":       run.ID,
				"workspace_id": run.WorkspaceID,
			})
		}
	}

	account, err := e.store.GetSocialAccount(ctx, ar.WorkspaceID, ar.SocialAccountID)
	if err != nil {
		log.Error("failed to load social account", zap.Error(err))
		e.failAccountRun(ctx, ar, run, models.ErrCodeAccountNotFound)
		return
	}
	if account == nil {
		e.failAccountRun(ctx, ar, run, models.ErrCodeAccountNotFound)
		return
	}

	credential, err := e.store.GetCredential(ctx, account.ID, models.CredentialTypeStorageState)
	if err != nil {
		log.Error("failed to load credential", zap.Error(err))
		e.failAccountRun(ctx, ar, run, models.ErrCodeAuthRequired)
		return
	}
	if account.Status != models.AccountStatusHealthy || credential == nil {
		e.failAccountRun(ctx, ar, run, models.ErrCodeAuthRequired)
		return
	}

	if e.vault == nil {
		e.failAccountRun(ctx, ar, run, models.ErrCodeCredentialDecryptFailed)
		return
	}
	storageState, err := e.vault.DecryptJSON(credential.EncryptedBlob)
	if err != nil {
		log.Warn("failed to decrypt credential", zap.Error(err))
		e.failAccountRun(ctx, ar, run, models.ErrCodeCredentialDecryptFailed)
		return
	}

	planIn := planner.PlanInput{
		WorkspaceID: ar.WorkspaceID,
		AccountID:   account.ID,
		PlatformKey: account.PlatformKey,
		RunID:       run.ID,
		Strategy:    strategy,
	}

	if planner.IsSearchStrategy(planner.StrategyType(strategy)) {
		specs := planner.BuildSearchCollectSpecs(planIn)
		executed, results, errCode := e.executeSpecs(ctx, ar, account, strategy, storageState, specs)
		if errCode != "" {
			e.failAccountRun(ctx, ar, run, errCode)
			return
		}

		candidates := extractCandidates(executed, results)
		if len(candidates) == 0 {
			e.succeedAccountRun(ctx, ar, run)
			return
		}

		actionSpecs := planner.BuildSearchActionSpecs(planIn, candidates)
		if _, _, errCode := e.executeSpecs(ctx, ar, account, strategy, storageState, actionSpecs); errCode != "" {
			e.failAccountRun(ctx, ar, run, errCode)
			return
		}
	} else {
		specs := planner.BuildActionSpecs(planIn)
		if _, _, errCode := e.executeSpecs(ctx, ar, account, strategy, storageState, specs); errCode != "" {
			e.failAccountRun(ctx, ar, run, errCode)
			return
		}
	}

	e.succeedAccountRun(ctx, ar, run)
}

func (e *Executor) failAccountRun(ctx context.Context, ar *models.AccountRun, run *models.Run, errorCode string) {
	finishedAt := time.Now().UTC()
	if err := e.store.FinishAccountRun(ctx, ar.ID, models.AccountRunFailed, &errorCode, finishedAt); err != nil {
		e.logger.Error("failed to finish account run",
			zap.String("account_run_id", ar.ID),
			zap.Error(err))
	}
	e.logger.Info("account run failed",
		zap.String("account_run_id", ar.ID),
		zap.String("error_code", errorCode))

	e.publish(ctx, events.AccountRunFinished, map[string]any{
		"account_run_id": ar.ID,
		"run_id":         run.ID,
		"workspace_id":   ar.WorkspaceID,
		"status":         string(models.AccountRunFailed),
		"error_code":     errorCode,
	})

	e.recordUsage(ctx, ar, finishedAt)
	e.finalizeRun(ctx, run.ID, ar.WorkspaceID)
}

func (e *Executor) succeedAccountRun(ctx context.Context, ar *models.AccountRun, run *models.Run) {
	finishedAt := time.Now().UTC()
	if err := e.store.FinishAccountRun(ctx, ar.ID, models.AccountRunSucceeded, nil, finishedAt); err != nil {
		e.logger.Error("failed to finish account run",
			zap.String("account_run_id", ar.ID),
			zap.Error(err))
	}

	e.publish(ctx, events.AccountRunFinished, map[string]any{
		"account_run_id": ar.ID,
		"run_id":         run.ID,
		"workspace_id":   ar.WorkspaceID,
		"status":         string(models.AccountRunSucceeded),
	})

	e.recordUsage(ctx, ar, finishedAt)
	e.finalizeRun(ctx, run.ID, ar.WorkspaceID)
}

// recordUsage accrues the account run's wall time against the workspace's
// monthly runtime counter.
func (e *Executor) recordUsage(ctx context.Context, ar *models.AccountRun, finishedAt time.Time) {
	if ar.StartedAt == nil {
		return
	}
	seconds := int64(finishedAt.Sub(*ar.StartedAt) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	periodStart := time.Date(finishedAt.Year(), finishedAt.Month(), 1, 0, 0, 0, 0, time.UTC)
	if err := e.store.AddUsageSeconds(ctx, ar.WorkspaceID, periodStart, seconds); err != nil {
		e.logger.Warn("failed to record usage",
			zap.String("workspace_id", ar.WorkspaceID),
			zap.Error(err))
	}
}

// finalizeRun rolls the run up once every sibling account run is terminal.
func (e *Executor) finalizeRun(ctx context.Context, runID, workspaceID string) {
	if err := e.store.RollupRun(ctx, runID); err != nil {
		e.logger.Error("failed to roll up run",
			zap.String("run_id", runID),
			zap.Error(err))
		return
	}

	run, err := e.store.GetRun(ctx, runID)
	if err != nil || run == nil {
		return
	}
	if run.Status != models.RunStatusSucceeded && run.Status != models.RunStatusFailed {
		return
	}

	e.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", string(run.Status)))

	e.publish(ctx, events.RunFinished, map[string]any{
		"run_id":       runID,
		"workspace_id": workspaceID,
		"status":       string(run.Status),
	})
}

// publish emits the event on its type subject, suffixed with the entity ID
// for the finished events that watchers subscribe to individually.
func (e *Executor) publish(ctx context.Context, eventType string, data map[string]any) {
	if e.bus == nil {
		return
	}
	subject := eventType
	switch eventType {
	case events.RunFinished:
		if id, ok := data["run_id"].(string); ok && id != "" {
			subject = events.BuildRunFinishedSubject(id)
		}
	case events.AccountRunFinished:
		if id, ok := data["account_run_id"].(string); ok && id != "" {
			subject = events.BuildAccountRunFinishedSubject(id)
		}
	}
	if err := e.bus.Publish(ctx, subject, bus.NewEvent(eventType, "executor", data)); err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
