// Package service implements the control-plane operations behind the HTTP
// and WebSocket surfaces: tenant CRUD, login-session lifecycle, and run
// triggering.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/capture"
	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/scheduler"
	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/events/bus"
	"github.com/syncsocial/syncsocial/internal/subscription"
)

// RunNotAllowedError is returned when a subscription gate denies a run.
type RunNotAllowedError struct {
	Reason string
}

func (e *RunNotAllowedError) Error() string {
	return fmt.Sprintf("run not allowed: %s", e.Reason)
}

// Service coordinates the store, the scheduler and the browser cluster for
// API callers.
type Service struct {
	store        *store.Store
	scheduler    *scheduler.Scheduler
	gate         *subscription.Gate
	cluster      cluster.BrowserCluster
	capture      *capture.Watcher
	eventBus     bus.EventBus
	artifactsDir string
	logger       *logger.Logger
}

// New creates the automation service.
func New(
	st *store.Store,
	sched *scheduler.Scheduler,
	gate *subscription.Gate,
	cl cluster.BrowserCluster,
	watcher *capture.Watcher,
	eventBus bus.EventBus,
	artifactsDir string,
	log *logger.Logger,
) *Service {
	return &Service{
		store:        st,
		scheduler:    sched,
		gate:         gate,
		cluster:      cl,
		capture:      watcher,
		eventBus:     eventBus,
		artifactsDir: artifactsDir,
		logger:       log.WithFields(zap.String("component", "automation-service")),
	}
}

// CreateWorkspace creates a new workspace tenant.
func (s *Service) CreateWorkspace(ctx context.Context, name string) (*models.Workspace, error) {
	ws := &models.Workspace{Name: name}
	if err := s.store.CreateWorkspace(ctx, ws); err != nil {
		s.logger.Error("failed to create workspace", zap.Error(err))
		return nil, err
	}
	s.logger.Info("workspace created", zap.String("workspace_id", ws.ID), zap.String("name", ws.Name))
	return ws, nil
}

// GetWorkspace retrieves a workspace by ID.
func (s *Service) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	ws, err := s.store.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, fmt.Errorf("workspace not found")
	}
	return ws, nil
}

func (s *Service) publish(ctx context.Context, subject, eventType string, data map[string]any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, subject, &bus.Event{Type: eventType, Data: data}); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
