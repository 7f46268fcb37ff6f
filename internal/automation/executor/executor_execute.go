package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/planner"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// Column limits on the actions table.
const (
	maxActionTypeLen     = 32
	maxPlatformKeyLen    = 32
	maxTargetExternalLen = 200
	maxTargetURLLen      = 1000
	maxIdempotencyKeyLen = 500
)

// executeSpecs materializes the plan into action rows, sends the pending
// ones to the browser cluster as one ordered batch, and records each result.
// It returns the dispatched actions, the positional results, and the account
// run error code ("" when everything succeeded or nothing was pending).
func (e *Executor) executeSpecs(
	ctx context.Context,
	ar *models.AccountRun,
	account *models.SocialAccount,
	strategy *models.Strategy,
	storageState map[string]any,
	specs []planner.ActionSpec,
) ([]*models.Action, []v1.ExecuteActionResult, string) {
	var (
		toExecute []*models.Action
		payload   []v1.ActionItem
		bandwidth v1.BandwidthMode
	)

	for _, spec := range specs {
		action, err := e.materializeAction(ctx, ar, account, strategy, spec)
		if err != nil {
			e.logger.Error("failed to materialize action",
				zap.String("account_run_id", ar.ID),
				zap.String("idempotency_key", spec.IdempotencyKey),
				zap.Error(err))
			continue
		}
		if action == nil {
			continue
		}
		// Idempotency: never re-dispatch an action another run completed.
		if action.Status == models.ActionSucceeded || action.Status == models.ActionSkipped {
			continue
		}

		toExecute = append(toExecute, action)
		payload = append(payload, v1.ActionItem{
			ActionType:       action.ActionType,
			TargetURL:        action.TargetURL,
			TargetExternalID: action.TargetExternalID,
			ActionParams:     spec.ActionParams,
		})

		if bandwidth == "" {
			bandwidth = spec.BandwidthMode
		}
	}

	if len(toExecute) == 0 {
		return nil, nil, ""
	}

	startedAt := time.Now().UTC()
	ids := make([]string, len(toExecute))
	for i, action := range toExecute {
		ids[i] = action.ID
	}
	if err := e.store.MarkActionsRunning(ctx, ids, startedAt); err != nil {
		e.logger.Error("failed to mark actions running",
			zap.String("account_run_id", ar.ID),
			zap.Error(err))
	}

	resp, err := e.cluster.ExecuteBatch(ctx, &v1.ExecuteBatchRequest{
		PlatformKey:        account.PlatformKey,
		StorageState:       storageState,
		BandwidthMode:      bandwidth,
		FingerprintProfile: account.FingerprintProfile,
		Actions:            payload,
	})
	if err != nil {
		e.failDispatched(ctx, toExecute, err.Error())
		return toExecute, nil, models.ErrCodeBrowserNodeError
	}
	if len(resp.Results) != len(toExecute) {
		e.failDispatched(ctx, toExecute, "browser node returned mismatched results")
		return toExecute, resp.Results, models.ErrCodeBrowserNodeError
	}

	var failures []string
	authRequired := false
	finishedAt := time.Now().UTC()

	for i, action := range toExecute {
		result := resp.Results[i]

		metadata := map[string]any{
			"message":         nil,
			"current_url":     nil,
			"result_metadata": map[string]any{},
		}
		if result.Message != nil {
			metadata["message"] = *result.Message
		}
		if result.CurrentURL != nil {
			metadata["current_url"] = *result.CurrentURL
		}
		if result.Metadata != nil {
			metadata["result_metadata"] = result.Metadata
		}

		var status models.ActionStatus
		switch result.Status {
		case v1.ActionResultSucceeded:
			status = models.ActionSucceeded
		case v1.ActionResultSkipped:
			status = models.ActionSkipped
		default:
			status = models.ActionFailed
			code := ""
			if result.ErrorCode != nil {
				code = *result.ErrorCode
			}
			failures = append(failures, code)
			if code == models.ErrCodeAuthRequired {
				authRequired = true
			}
		}

		if err := e.store.FinishAction(ctx, action.ID, status, result.ErrorCode, metadata, finishedAt); err != nil {
			e.logger.Error("failed to record action result",
				zap.String("action_id", action.ID),
				zap.Error(err))
		}

		if result.ScreenshotBase64 != nil && *result.ScreenshotBase64 != "" {
			e.storeScreenshot(ctx, action, *result.ScreenshotBase64)
		}
	}

	if authRequired {
		if err := e.store.UpdateSocialAccountStatus(ctx, account.ID, models.AccountStatusNeedsLogin, time.Now().UTC()); err != nil {
			e.logger.Error("failed to flag account for re-login",
				zap.String("social_account_id", account.ID),
				zap.Error(err))
		}
	}

	if len(failures) > 0 {
		return toExecute, resp.Results, failureCause(failures)
	}
	return toExecute, resp.Results, ""
}

// failureCause picks the account run error code from the per-action codes:
// the first real failure wins; ABORTED actions only echo an earlier abort.
func failureCause(codes []string) string {
	for _, code := range codes {
		if code != "" && code != models.ErrCodeAborted {
			return code
		}
	}
	if codes[0] != "" {
		return codes[0]
	}
	return models.ErrCodeActionFailed
}

// materializeAction finds or creates the action row for a spec. An existing
// row with the same idempotency key is reused as-is.
func (e *Executor) materializeAction(ctx context.Context, ar *models.AccountRun, account *models.SocialAccount, strategy *models.Strategy, spec planner.ActionSpec) (*models.Action, error) {
	key := strings.TrimSpace(spec.IdempotencyKey)
	if key == "" {
		return nil, nil
	}

	platformKey := spec.PlatformKey
	if platformKey == "" {
		platformKey = account.PlatformKey
	}

	action := &models.Action{
		WorkspaceID:    ar.WorkspaceID,
		AccountRunID:   ar.ID,
		ActionType:     truncate(strings.TrimSpace(spec.ActionType), maxActionTypeLen),
		PlatformKey:    truncate(strings.ToLower(strings.TrimSpace(platformKey)), maxPlatformKeyLen),
		IdempotencyKey: truncate(key, maxIdempotencyKeyLen),
		Status:         models.ActionQueued,
		Metadata: map[string]any{
			"strategy_id":      strategy.ID,
			"strategy_version": strategy.Version,
		},
	}
	if spec.TargetExternalID != nil {
		id := truncate(strings.TrimSpace(*spec.TargetExternalID), maxTargetExternalLen)
		action.TargetExternalID = &id
	}
	if spec.TargetURL != nil {
		url := truncate(strings.TrimSpace(*spec.TargetURL), maxTargetURLLen)
		action.TargetURL = &url
	}

	found, _, err := e.store.FindOrCreateAction(ctx, action)
	if err != nil {
		return nil, err
	}
	return found, nil
}

// failDispatched marks every dispatched action failed with BROWSER_NODE_ERROR.
func (e *Executor) failDispatched(ctx context.Context, actions []*models.Action, message string) {
	finishedAt := time.Now().UTC()
	code := models.ErrCodeBrowserNodeError
	for _, action := range actions {
		metadata := map[string]any{"message": message}
		if err := e.store.FinishAction(ctx, action.ID, models.ActionFailed, &code, metadata, finishedAt); err != nil {
			e.logger.Error("failed to record browser node error",
				zap.String("action_id", action.ID),
				zap.Error(err))
		}
	}
}

// storeScreenshot decodes and writes the screenshot under the artifacts dir
// and records an artifact row. Failures are logged, never fatal.
func (e *Executor) storeScreenshot(ctx context.Context, action *models.Action, screenshotBase64 string) {
	if e.config.ArtifactsDir == "" {
		return
	}

	payload, err := base64.StdEncoding.DecodeString(screenshotBase64)
	if err != nil {
		e.logger.Warn("discarding malformed screenshot",
			zap.String("action_id", action.ID),
			zap.Error(err))
		return
	}

	storageKey := fmt.Sprintf("%s/%s-screenshot.png", action.WorkspaceID, action.ID)
	path := filepath.Join(e.config.ArtifactsDir, filepath.FromSlash(storageKey))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.logger.Warn("failed to create artifact directory", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		e.logger.Warn("failed to write screenshot", zap.Error(err))
		return
	}

	artifact := &models.Artifact{
		WorkspaceID: action.WorkspaceID,
		ActionID:    action.ID,
		Type:        models.ArtifactTypeScreenshot,
		StorageKey:  storageKey,
		Size:        int64(len(payload)),
	}
	if err := e.store.CreateArtifact(ctx, artifact); err != nil {
		e.logger.Warn("failed to record artifact",
			zap.String("action_id", action.ID),
			zap.Error(err))
	}
}

// extractCandidates pulls the collected tweets out of the x_search_collect
// result. Only the first collect action in the batch is consulted. The
// metadata arrives typed from the in-process cluster and as generic JSON
// maps from a remote one; both shapes are accepted.
func extractCandidates(executed []*models.Action, results []v1.ExecuteActionResult) []v1.SearchCandidate {
	if len(executed) != len(results) {
		return nil
	}
	for i, action := range executed {
		if action.ActionType != models.ActionXSearchCollect {
			continue
		}
		return decodeCandidates(results[i].Metadata["candidates"])
	}
	return nil
}

func decodeCandidates(raw any) []v1.SearchCandidate {
	switch v := raw.(type) {
	case []v1.SearchCandidate:
		return v
	case []any:
		var candidates []v1.SearchCandidate
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			cand := v1.SearchCandidate{}
			if s, ok := m["tweet_id"].(string); ok {
				cand.TweetID = s
			}
			if s, ok := m["url"].(string); ok {
				cand.URL = s
			}
			if b, ok := m["is_verified"].(bool); ok {
				cand.IsVerified = &b
			}
			candidates = append(candidates, cand)
		}
		return candidates
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
