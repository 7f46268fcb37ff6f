package websocket

// Action constants for WebSocket messages
const (
	// Health
	ActionHealthCheck = "health.check"

	// Watch subscriptions (client -> server)
	ActionLoginSessionWatch   = "login_session.watch"
	ActionLoginSessionUnwatch = "login_session.unwatch"
	ActionRunWatch            = "run.watch"
	ActionRunUnwatch          = "run.unwatch"

	// Notifications (server -> client)
	ActionLoginSessionStatus = "login_session.status"
	ActionRunFinished        = "run.finished"
	ActionAccountRunFinished = "account_run.finished"
)

// Error codes
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
)
