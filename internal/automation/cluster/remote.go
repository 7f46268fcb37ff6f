package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/common/logger"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// InternalTokenHeader authenticates control-plane calls to browser nodes.
const InternalTokenHeader = "x-internal-token"

// batchTimeout bounds a whole batch; individual actions have their own
// navigation and interaction timeouts on the worker side.
const batchTimeout = 10 * time.Minute

// RemoteCluster talks to a browser node over HTTP.
type RemoteCluster struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	batchClient *http.Client
	logger      *logger.Logger
}

var _ BrowserCluster = (*RemoteCluster)(nil)

// NewRemoteCluster creates a client for the browser node at baseURL.
func NewRemoteCluster(baseURL, token string, log *logger.Logger) *RemoteCluster {
	return &RemoteCluster{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		batchClient: &http.Client{
			Timeout: batchTimeout,
		},
		logger: log.WithFields(zap.String("component", "browser-cluster")),
	}
}

// Health checks if the browser node is reachable.
func (c *RemoteCluster) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

// StartLoginSession opens an interactive login runtime on the node.
func (c *RemoteCluster) StartLoginSession(ctx context.Context, req *v1.StartLoginSessionRequest) (*v1.StartLoginSessionResponse, error) {
	var result v1.StartLoginSessionResponse
	if err := c.post(ctx, c.httpClient, "/login-sessions", req, &result); err != nil {
		return nil, err
	}

	c.logger.Info("started login session on node",
		zap.String("login_session_id", req.LoginSessionID),
		zap.String("platform_key", req.PlatformKey))

	return &result, nil
}

// IsLoggedIn probes the login runtime.
func (c *RemoteCluster) IsLoggedIn(ctx context.Context, loginSessionID string) (bool, error) {
	var result v1.IsLoggedInResponse
	if err := c.get(ctx, "/login-sessions/"+loginSessionID+"/is-logged-in", &result); err != nil {
		return false, err
	}
	return result.LoggedIn, nil
}

// CaptureStorageState extracts the runtime's storage state.
func (c *RemoteCluster) CaptureStorageState(ctx context.Context, loginSessionID string) (map[string]any, error) {
	var result v1.StorageStateResponse
	if err := c.get(ctx, "/login-sessions/"+loginSessionID+"/storage-state", &result); err != nil {
		return nil, err
	}
	return result.StorageState, nil
}

// StopLoginSession closes the login runtime.
func (c *RemoteCluster) StopLoginSession(ctx context.Context, loginSessionID string) error {
	var result v1.StopLoginSessionResponse
	return c.post(ctx, c.httpClient, "/login-sessions/"+loginSessionID+"/stop", nil, &result)
}

// ExecuteBatch runs an ordered action batch on the node.
func (c *RemoteCluster) ExecuteBatch(ctx context.Context, req *v1.ExecuteBatchRequest) (*v1.ExecuteBatchResponse, error) {
	var result v1.ExecuteBatchResponse
	if err := c.post(ctx, c.batchClient, "/automation/actions/execute-batch", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RemoteCluster) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(c.httpClient, req, out)
}

func (c *RemoteCluster) post(ctx context.Context, client *http.Client, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(client, req, out)
}

func (c *RemoteCluster) do(client *http.Client, req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set(InternalTokenHeader, c.token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("browser node request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrSessionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("browser node returned %d: %s", resp.StatusCode, errResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
