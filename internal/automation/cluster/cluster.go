// Package cluster abstracts the browser-node fleet behind a small client
// interface. The control plane only ever talks to workers through it, so an
// in-process node (local mode) and a remote HTTP node are interchangeable.
package cluster

import (
	"context"
	"errors"

	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// ErrSessionNotFound is returned when the node has no runtime for the given
// login session, typically because the node restarted.
var ErrSessionNotFound = errors.New("login session not found on node")

// BrowserCluster is the worker surface the control plane depends on.
type BrowserCluster interface {
	// StartLoginSession opens an interactive login runtime on a node.
	StartLoginSession(ctx context.Context, req *v1.StartLoginSessionRequest) (*v1.StartLoginSessionResponse, error)

	// IsLoggedIn probes whether the login runtime has a logged-in session.
	IsLoggedIn(ctx context.Context, loginSessionID string) (bool, error)

	// CaptureStorageState extracts cookies and local storage from the login
	// runtime without closing it.
	CaptureStorageState(ctx context.Context, loginSessionID string) (map[string]any, error)

	// StopLoginSession closes the login runtime. Stopping an unknown session
	// is not an error.
	StopLoginSession(ctx context.Context, loginSessionID string) error

	// ExecuteBatch runs an ordered action batch in one browser context.
	ExecuteBatch(ctx context.Context, req *v1.ExecuteBatchRequest) (*v1.ExecuteBatchResponse, error)
}
