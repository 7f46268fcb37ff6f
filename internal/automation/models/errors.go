package models

// Error codes persisted on Action and AccountRun rows. The worker surfaces
// most of these; the control plane synthesizes the rest.
const (
	ErrCodeUnsupportedPlatform     = "UNSUPPORTED_PLATFORM"
	ErrCodeUnsupportedAction       = "UNSUPPORTED_ACTION"
	ErrCodeInvalidTarget           = "INVALID_TARGET"
	ErrCodeInvalidParams           = "INVALID_PARAMS"
	ErrCodeAuthRequired            = "AUTH_REQUIRED"
	ErrCodeUISelectorChanged       = "UI_SELECTOR_CHANGED"
	ErrCodeUIIntercepted           = "UI_INTERCEPTED"
	ErrCodePostValidationFailed    = "POST_VALIDATION_FAILED"
	ErrCodeReplyRestricted         = "REPLY_RESTRICTED"
	ErrCodeNetworkTimeout          = "NETWORK_TIMEOUT"
	ErrCodeBrowserError            = "BROWSER_ERROR"
	ErrCodeInternalError           = "INTERNAL_ERROR"
	ErrCodeAborted                 = "ABORTED"
	ErrCodeBrowserNodeError        = "BROWSER_NODE_ERROR"
	ErrCodeStrategyNotFound        = "STRATEGY_NOT_FOUND"
	ErrCodeAccountNotFound         = "ACCOUNT_NOT_FOUND"
	ErrCodeCredentialDecryptFailed = "CREDENTIAL_DECRYPT_FAILED"
	ErrCodeActionFailed            = "ACTION_FAILED"
)

// Action types understood by the planner and the worker.
const (
	ActionHealthCheck    = "health_check"
	ActionXLike          = "x_like"
	ActionXRepost        = "x_repost"
	ActionXReply         = "x_reply"
	ActionXQuote         = "x_quote"
	ActionXSearchCollect = "x_search_collect"
)
