// Package automation drives platform UI actions inside disposable browser
// contexts. Each batch gets one fresh browser; within a batch actions run
// strictly sequentially and abort after the first failure.
package automation

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/browsernode/platforms"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

const (
	defaultTimeoutMs    = 15_000
	navigationTimeoutMs = 30_000
)

// Executor runs action batches against platform UIs.
type Executor struct {
	headless bool
	logger   *logger.Logger
}

// NewExecutor creates an action executor.
func NewExecutor(headless bool, log *logger.Logger) *Executor {
	return &Executor{
		headless: headless,
		logger:   log.WithFields(zap.String("component", "action-executor")),
	}
}

// ExecuteAction runs a single action in a fresh browser context. It is a
// one-item batch with identical semantics.
func (e *Executor) ExecuteAction(req *v1.ExecuteActionRequest) *v1.ExecuteActionResult {
	results := e.ExecuteBatch(&v1.ExecuteBatchRequest{
		PlatformKey:        req.PlatformKey,
		StorageState:       req.StorageState,
		BandwidthMode:      req.BandwidthMode,
		FingerprintProfile: req.FingerprintProfile,
		Actions: []v1.ActionItem{{
			ActionType:       req.ActionType,
			TargetURL:        req.TargetURL,
			TargetExternalID: req.TargetExternalID,
			ActionParams:     req.ActionParams,
		}},
	})
	return &results[0]
}

// ExecuteBatch runs an ordered batch on one page. Results align positionally
// with the submitted actions; after the first failed result the remaining
// positions are filled with ABORTED without executing.
func (e *Executor) ExecuteBatch(req *v1.ExecuteBatchRequest) []v1.ExecuteActionResult {
	if !platforms.IsSupported(req.PlatformKey) {
		return repeatResult(len(req.Actions), failed(CodeUnsupportedPlatform,
			fmt.Sprintf("unsupported platform: %s", req.PlatformKey), nil))
	}

	page, cleanup, err := e.openPage(req)
	if err != nil {
		e.logger.Error("failed to open browser for batch", zap.Error(err))
		return repeatResult(len(req.Actions), errorResult(err, nil))
	}
	defer cleanup()

	results := make([]v1.ExecuteActionResult, 0, len(req.Actions))
	aborted := false
	for _, item := range req.Actions {
		if aborted {
			results = append(results, v1.ExecuteActionResult{
				Status:     v1.ActionResultFailed,
				ErrorCode:  ptr(CodeAborted),
				Message:    ptr("previous action failed"),
				CurrentURL: currentURL(page),
				Metadata:   map[string]any{},
			})
			continue
		}

		res := e.executeOnPage(page, item)
		results = append(results, res)
		if res.Status == v1.ActionResultFailed {
			aborted = true
		}
	}
	return results
}

// openPage launches a browser seeded with the caller's storage state and
// fingerprint, with the bandwidth filter installed.
func (e *Executor) openPage(req *v1.ExecuteBatchRequest) (playwright.Page, func(), error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, nil, err
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(e.headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, nil, err
	}

	opts := contextOptions(req.FingerprintProfile)
	state, err := storageStateOption(req.StorageState)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, nil, err
	}
	opts.StorageState = state

	context, err := browser.NewContext(opts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, nil, err
	}
	if err := installBandwidthFilter(context, req.BandwidthMode); err != nil {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, nil, err
	}

	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, nil, err
	}
	page.SetDefaultTimeout(defaultTimeoutMs)
	page.SetDefaultNavigationTimeout(navigationTimeoutMs)

	cleanup := func() {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
	}
	return page, cleanup, nil
}

// executeOnPage dispatches one action and converts panics and transport
// errors into result rows so a batch never loses positional alignment.
func (e *Executor) executeOnPage(page playwright.Page, item v1.ActionItem) (res v1.ExecuteActionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(CodeInternalError, fmt.Sprintf("panic: %v", r), page)
		}
	}()

	switch strings.ToLower(strings.TrimSpace(item.ActionType)) {
	case "health_check", "x_health_check":
		return xHealthCheck(page)
	case "x_like", "like":
		return xLike(page, item.TargetURL, item.TargetExternalID)
	case "x_repost", "x_retweet", "retweet", "repost":
		return xRepost(page, item.TargetURL, item.TargetExternalID)
	case "x_reply", "reply":
		return xReply(page, item.TargetURL, item.TargetExternalID, item.ActionParams)
	case "x_quote", "quote":
		return xQuote(page, item.TargetURL, item.TargetExternalID, item.ActionParams)
	case "x_search_collect":
		return xSearchCollect(page, item.TargetURL, item.ActionParams)
	default:
		return failed(CodeUnsupportedAction,
			fmt.Sprintf("unsupported action_type: %s", item.ActionType), page)
	}
}

// contextOptions reuses the session manager's fingerprint whitelist shape
// for disposable action contexts.
func contextOptions(profile map[string]any) playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{}
	if len(profile) == 0 {
		return opts
	}
	if ua, ok := profile["user_agent"].(string); ok && strings.TrimSpace(ua) != "" {
		opts.UserAgent = playwright.String(strings.TrimSpace(ua))
	}
	if viewport, ok := profile["viewport"].(map[string]any); ok {
		width, wok := numField(viewport, "width")
		height, hok := numField(viewport, "height")
		if wok && hok && width > 0 && height > 0 {
			opts.Viewport = &playwright.Size{Width: width, Height: height}
		}
	}
	if locale, ok := profile["locale"].(string); ok && strings.TrimSpace(locale) != "" {
		opts.Locale = playwright.String(strings.TrimSpace(locale))
	}
	if tz, ok := profile["timezone_id"].(string); ok && strings.TrimSpace(tz) != "" {
		opts.TimezoneId = playwright.String(strings.TrimSpace(tz))
	}
	return opts
}

func numField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// storageStateOption converts the opaque storage-state map into Playwright's
// typed form via a JSON round trip.
func storageStateOption(state map[string]any) (*playwright.OptionalStorageState, error) {
	if len(state) == 0 {
		return nil, errors.New("storage_state is required")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var out playwright.OptionalStorageState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid storage_state: %w", err)
	}
	return &out, nil
}

// Result constructors

func ptr(s string) *string { return &s }

func succeeded(page playwright.Page, metadata map[string]any) v1.ExecuteActionResult {
	return v1.ExecuteActionResult{
		Status:     v1.ActionResultSucceeded,
		CurrentURL: currentURL(page),
		Metadata:   metadata,
	}
}

func skipped(page playwright.Page, message string, metadata map[string]any) v1.ExecuteActionResult {
	return v1.ExecuteActionResult{
		Status:     v1.ActionResultSkipped,
		Message:    ptr(message),
		CurrentURL: currentURL(page),
		Metadata:   metadata,
	}
}

func skippedWithCode(page playwright.Page, code, message string, metadata map[string]any) v1.ExecuteActionResult {
	res := skipped(page, message, metadata)
	res.ErrorCode = ptr(code)
	return res
}

// failed builds a failure result with a best-effort screenshot when a page
// has rendered.
func failed(code, message string, page playwright.Page) v1.ExecuteActionResult {
	res := v1.ExecuteActionResult{
		Status:    v1.ActionResultFailed,
		ErrorCode: ptr(code),
		Message:   ptr(message),
		Metadata:  map[string]any{},
	}
	if page != nil {
		res.CurrentURL = currentURL(page)
		res.ScreenshotBase64 = safeScreenshot(page)
	}
	return res
}

// errorResult classifies a raw Playwright error into the taxonomy.
func errorResult(err error, page playwright.Page) v1.ExecuteActionResult {
	switch {
	case errors.Is(err, playwright.ErrTimeout):
		return failed(CodeNetworkTimeout, "playwright timeout", page)
	case errors.Is(err, playwright.ErrPlaywright), errors.Is(err, playwright.ErrTargetClosed):
		return failed(CodeBrowserError, err.Error(), page)
	default:
		return failed(CodeInternalError, err.Error(), page)
	}
}

func repeatResult(n int, res v1.ExecuteActionResult) []v1.ExecuteActionResult {
	out := make([]v1.ExecuteActionResult, n)
	for i := range out {
		out[i] = res
	}
	return out
}

func currentURL(page playwright.Page) *string {
	if page == nil {
		return nil
	}
	url := page.URL()
	if url == "" {
		return nil
	}
	return &url
}

// safeScreenshot captures a viewport PNG. Failures return nil; screenshots
// are diagnostics, never part of the action contract.
func safeScreenshot(page playwright.Page) *string {
	if page == nil {
		return nil
	}
	png, err := page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(false),
	})
	if err != nil {
		return nil
	}
	encoded := base64.StdEncoding.EncodeToString(png)
	return &encoded
}
