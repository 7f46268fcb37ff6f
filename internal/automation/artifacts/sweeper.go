// Package artifacts removes screenshot files that have outlived their
// workspace's retention window.
package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/common/logger"
)

const (
	// DefaultSweepInterval is how often the retention sweep runs.
	DefaultSweepInterval = 6 * time.Hour

	// sweepBatchSize bounds how many artifacts one workspace pass deletes.
	sweepBatchSize = 200
)

// Sweeper deletes expired artifacts on a timer.
type Sweeper struct {
	store    *store.Store
	logger   *logger.Logger
	dir      string
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper rooted at the artifacts directory.
func NewSweeper(st *store.Store, log *logger.Logger, artifactsDir string, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    st,
		logger:   log.WithFields(zap.String("component", "artifact-sweeper")),
		dir:      artifactsDir,
		interval: interval,
	}
}

// Start begins the sweep loop. An immediate sweep runs on start.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop stops the sweep loop.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()
}

// Sweep runs one retention pass over every workspace with a retention policy.
func (s *Sweeper) Sweep(ctx context.Context) {
	retention, err := s.store.ListWorkspaceIDsWithRetention(ctx)
	if err != nil {
		s.logger.Error("failed to list retention policies", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for workspaceID, days := range retention {
		if days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -days)
		deleted := s.sweepWorkspace(ctx, workspaceID, cutoff)
		if deleted > 0 {
			s.logger.Info("swept expired artifacts",
				zap.String("workspace_id", workspaceID),
				zap.Int("deleted", deleted))
		}
	}
}

func (s *Sweeper) sweepWorkspace(ctx context.Context, workspaceID string, cutoff time.Time) int {
	expired, err := s.store.ListExpiredArtifacts(ctx, workspaceID, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Error("failed to list expired artifacts",
			zap.String("workspace_id", workspaceID),
			zap.Error(err))
		return 0
	}

	deleted := 0
	for _, artifact := range expired {
		if s.dir != "" {
			path := filepath.Join(s.dir, filepath.FromSlash(artifact.StorageKey))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove artifact file",
					zap.String("storage_key", artifact.StorageKey),
					zap.Error(err))
				continue
			}
		}
		if err := s.store.DeleteArtifact(ctx, artifact.ID); err != nil {
			s.logger.Error("failed to delete artifact row",
				zap.String("artifact_id", artifact.ID),
				zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted
}
