package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syncsocial/syncsocial/internal/automation/models"
)

// Run read operations

// RunDetail bundles a run with its account runs and every action.
type RunDetail struct {
	Run         *models.Run        `json:"run"`
	AccountRuns []*models.AccountRun `json:"account_runs"`
	Actions     []*models.Action   `json:"actions"`
}

// ListRuns returns recent runs for a workspace, newest first.
func (s *Service) ListRuns(ctx context.Context, workspaceID string, limit int) ([]*models.Run, error) {
	return s.store.ListRuns(ctx, workspaceID, limit)
}

// GetRunDetail loads a run with its account runs and actions. Screenshot
// payloads are stripped from action metadata; they are served as artifacts.
func (s *Service) GetRunDetail(ctx context.Context, workspaceID, runID string) (*RunDetail, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil || run.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("run not found")
	}

	accountRuns, err := s.store.ListAccountRuns(ctx, runID)
	if err != nil {
		return nil, err
	}

	var actions []*models.Action
	for _, ar := range accountRuns {
		list, err := s.store.ListActions(ctx, ar.ID)
		if err != nil {
			return nil, err
		}
		for _, action := range list {
			if action.Metadata != nil {
				delete(action.Metadata, "screenshot_base64")
			}
			actions = append(actions, action)
		}
	}

	return &RunDetail{Run: run, AccountRuns: accountRuns, Actions: actions}, nil
}

// Artifact read operations

// ResolveArtifactFile returns an artifact row together with the local path
// of its file for download.
func (s *Service) ResolveArtifactFile(ctx context.Context, workspaceID, artifactID string) (*models.Artifact, string, error) {
	artifact, err := s.store.GetArtifact(ctx, workspaceID, artifactID)
	if err != nil {
		return nil, "", err
	}
	if artifact == nil {
		return nil, "", fmt.Errorf("artifact not found")
	}

	path := filepath.Join(s.artifactsDir, filepath.FromSlash(artifact.StorageKey))
	if _, err := os.Stat(path); err != nil {
		return nil, "", fmt.Errorf("artifact file not found")
	}
	return artifact, path, nil
}
