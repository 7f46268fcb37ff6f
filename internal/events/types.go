// Package events provides event types and utilities for the SyncSocial event system.
package events

// Event types for runs
const (
	RunCreated  = "run.created"
	RunStarted  = "run.started"
	RunFinished = "run.finished"
)

// Event types for account runs
const (
	AccountRunQueued   = "account_run.queued"
	AccountRunStarted  = "account_run.started"
	AccountRunFinished = "account_run.finished"
)

// Event types for schedules
const (
	ScheduleCreated = "schedule.created"
	ScheduleUpdated = "schedule.updated"
	ScheduleDeleted = "schedule.deleted"
	ScheduleFired   = "schedule.fired"
)

// Event types for login sessions
const (
	LoginSessionStarted       = "login_session.started"
	LoginSessionStatusChanged = "login_session.status_changed"
)

// Event types for accounts
const (
	AccountCreated = "account.created"
	AccountUpdated = "account.updated"
	AccountDeleted = "account.deleted"
)

// BuildLoginSessionStatusSubject creates a status subject for a specific login session
func BuildLoginSessionStatusSubject(sessionID string) string {
	return LoginSessionStatusChanged + "." + sessionID
}

// BuildLoginSessionStatusWildcardSubject creates a wildcard subscription for all login session status events
func BuildLoginSessionStatusWildcardSubject() string {
	return LoginSessionStatusChanged + ".*"
}

// BuildRunFinishedSubject creates a finished-run subject for a specific run
func BuildRunFinishedSubject(runID string) string {
	return RunFinished + "." + runID
}

// BuildAccountRunFinishedSubject creates a finished subject for a specific account run
func BuildAccountRunFinishedSubject(accountRunID string) string {
	return AccountRunFinished + "." + accountRunID
}
