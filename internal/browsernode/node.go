// Package browsernode is the worker side of the automation runtime: it owns
// interactive login sessions and executes action batches with a real browser.
// In local mode the control plane embeds a Node directly; in remote mode the
// same Node sits behind the HTTP server in internal/browsernode/server.
package browsernode

import (
	"context"
	"errors"

	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/browsernode/automation"
	"github.com/syncsocial/syncsocial/internal/browsernode/platforms"
	"github.com/syncsocial/syncsocial/internal/browsernode/session"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// Node bundles the login-session manager and the action executor into the
// cluster contract the control plane consumes.
type Node struct {
	sessions *session.Manager
	executor *automation.Executor
}

var _ cluster.BrowserCluster = (*Node)(nil)

// New creates a worker node. remoteURL, when set, is the noVNC URL handed to
// operators for interactive logins.
func New(headless bool, remoteURL string, log *logger.Logger) *Node {
	return &Node{
		sessions: session.NewManager(headless, remoteURL, log),
		executor: automation.NewExecutor(headless, log),
	}
}

// Sessions exposes the login-session manager for the HTTP server.
func (n *Node) Sessions() *session.Manager { return n.sessions }

// Executor exposes the action executor for the HTTP server.
func (n *Node) Executor() *automation.Executor { return n.executor }

func (n *Node) StartLoginSession(ctx context.Context, req *v1.StartLoginSessionRequest) (*v1.StartLoginSessionResponse, error) {
	if !platforms.IsSupported(req.PlatformKey) {
		return nil, &platforms.ErrUnsupported{Key: req.PlatformKey}
	}
	remoteURL, err := n.sessions.StartLogin(req.LoginSessionID, req.PlatformKey, req.FingerprintProfile)
	if err != nil {
		return nil, err
	}
	return &v1.StartLoginSessionResponse{RemoteURL: remoteURL}, nil
}

func (n *Node) IsLoggedIn(ctx context.Context, loginSessionID string) (bool, error) {
	loggedIn, err := n.sessions.IsLoggedIn(loginSessionID)
	if err != nil {
		return false, mapSessionErr(err)
	}
	return loggedIn, nil
}

func (n *Node) CaptureStorageState(ctx context.Context, loginSessionID string) (map[string]any, error) {
	state, err := n.sessions.StorageState(loginSessionID)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return state, nil
}

func (n *Node) StopLoginSession(ctx context.Context, loginSessionID string) error {
	n.sessions.Stop(loginSessionID)
	return nil
}

func (n *Node) ExecuteBatch(ctx context.Context, req *v1.ExecuteBatchRequest) (*v1.ExecuteBatchResponse, error) {
	return &v1.ExecuteBatchResponse{Results: n.executor.ExecuteBatch(req)}, nil
}

// Close tears down all live login runtimes.
func (n *Node) Close() {
	n.sessions.Close()
}

func mapSessionErr(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return cluster.ErrSessionNotFound
	}
	return err
}
