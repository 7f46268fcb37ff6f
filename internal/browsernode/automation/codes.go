package automation

// Error codes surfaced to the control plane on action results. This list is
// the authoritative worker taxonomy; the control plane persists codes
// verbatim.
const (
	CodeUnsupportedPlatform  = "UNSUPPORTED_PLATFORM"
	CodeUnsupportedAction    = "UNSUPPORTED_ACTION"
	CodeInvalidTarget        = "INVALID_TARGET"
	CodeInvalidParams        = "INVALID_PARAMS"
	CodeAuthRequired         = "AUTH_REQUIRED"
	CodeUISelectorChanged    = "UI_SELECTOR_CHANGED"
	CodeUIIntercepted        = "UI_INTERCEPTED"
	CodePostValidationFailed = "POST_VALIDATION_FAILED"
	CodeReplyRestricted      = "REPLY_RESTRICTED"
	CodeNetworkTimeout       = "NETWORK_TIMEOUT"
	CodeBrowserError         = "BROWSER_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeAborted              = "ABORTED"
)
