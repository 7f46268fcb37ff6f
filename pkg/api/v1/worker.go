package v1

// Worker API types shared by the control plane's browser-cluster client and
// the browser-node HTTP server.

// ActionResultStatus is the outcome bucket of one action.
type ActionResultStatus string

const (
	ActionResultSucceeded ActionResultStatus = "succeeded"
	ActionResultFailed    ActionResultStatus = "failed"
	ActionResultSkipped   ActionResultStatus = "skipped"
)

// BandwidthMode selects how aggressively the worker filters page traffic.
type BandwidthMode string

const (
	BandwidthEco      BandwidthMode = "eco"
	BandwidthBalanced BandwidthMode = "balanced"
	BandwidthFull     BandwidthMode = "full"
)

// StartLoginSessionRequest asks the worker to open an interactive login page.
type StartLoginSessionRequest struct {
	LoginSessionID     string         `json:"login_session_id" binding:"required"`
	PlatformKey        string         `json:"platform_key" binding:"required"`
	FingerprintProfile map[string]any `json:"fingerprint_profile,omitempty"`
}

// StartLoginSessionResponse carries the public URL for the remote session.
type StartLoginSessionResponse struct {
	RemoteURL *string `json:"remote_url,omitempty"`
}

// IsLoggedInResponse reports the login probe result.
type IsLoggedInResponse struct {
	LoggedIn bool `json:"logged_in"`
}

// StopLoginSessionResponse acknowledges a stop.
type StopLoginSessionResponse struct {
	OK bool `json:"ok"`
}

// StorageStateResponse carries the captured browser storage state.
type StorageStateResponse struct {
	StorageState map[string]any `json:"storage_state"`
}

// ActionItem is one action inside a batch.
type ActionItem struct {
	ActionType       string         `json:"action_type" binding:"required"`
	TargetURL        *string        `json:"target_url,omitempty"`
	TargetExternalID *string        `json:"target_external_id,omitempty"`
	ActionParams     map[string]any `json:"action_params,omitempty"`
}

// ExecuteActionRequest runs a single action in a fresh browser context.
type ExecuteActionRequest struct {
	PlatformKey        string         `json:"platform_key" binding:"required"`
	ActionType         string         `json:"action_type" binding:"required"`
	StorageState       map[string]any `json:"storage_state" binding:"required"`
	TargetURL          *string        `json:"target_url,omitempty"`
	TargetExternalID   *string        `json:"target_external_id,omitempty"`
	BandwidthMode      BandwidthMode  `json:"bandwidth_mode,omitempty"`
	ActionParams       map[string]any `json:"action_params,omitempty"`
	FingerprintProfile map[string]any `json:"fingerprint_profile,omitempty"`
}

// ExecuteBatchRequest runs an ordered action batch in one browser context.
// The worker executes strictly sequentially and aborts after the first failure.
type ExecuteBatchRequest struct {
	PlatformKey        string         `json:"platform_key" binding:"required"`
	StorageState       map[string]any `json:"storage_state" binding:"required"`
	BandwidthMode      BandwidthMode  `json:"bandwidth_mode,omitempty"`
	FingerprintProfile map[string]any `json:"fingerprint_profile,omitempty"`
	Actions            []ActionItem   `json:"actions" binding:"required"`
}

// ExecuteActionResult is the worker's verdict for one action. Results in a
// batch response align positionally with the submitted actions.
type ExecuteActionResult struct {
	Status           ActionResultStatus `json:"status"`
	ErrorCode        *string            `json:"error_code,omitempty"`
	Message          *string            `json:"message,omitempty"`
	CurrentURL       *string            `json:"current_url,omitempty"`
	ScreenshotBase64 *string            `json:"screenshot_base64,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
}

// ExecuteBatchResponse wraps the positional results.
type ExecuteBatchResponse struct {
	Results []ExecuteActionResult `json:"results"`
}

// SearchCandidate is one collected tweet from an x_search_collect pass.
// IsVerified is nil when the source metadata carried no verdict.
type SearchCandidate struct {
	TweetID    string `json:"tweet_id"`
	URL        string `json:"url"`
	IsVerified *bool  `json:"is_verified,omitempty"`
}
