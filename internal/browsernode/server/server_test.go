package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/browsernode"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

const testToken = "node-secret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "text", OutputPath: "stdout"})
	require.NoError(t, err)

	node := browsernode.New(true, "", log)
	t.Cleanup(node.Close)

	return New(node, testToken, log).Router()
}

func doRequest(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(cluster.InternalTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoToken(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRejectsBadToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/login-sessions/ls-1/is-logged-in", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodGet, "/login-sessions/ls-1/is-logged-in", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownSessionIs404(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/login-sessions/ls-missing/is-logged-in", testToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(router, http.MethodGet, "/login-sessions/ls-missing/storage-state", testToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopUnknownSessionIsOK(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/login-sessions/ls-missing/stop", testToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp v1.StopLoginSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
}

func TestStartSessionUnsupportedPlatform(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/login-sessions", testToken, v1.StartLoginSessionRequest{
		LoginSessionID: "ls-1",
		PlatformKey:    "myspace",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchUnsupportedPlatform(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/automation/actions/execute-batch", testToken, v1.ExecuteBatchRequest{
		PlatformKey:  "myspace",
		StorageState: map[string]any{"cookies": []any{}},
		Actions: []v1.ActionItem{
			{ActionType: "x_like"},
			{ActionType: "x_repost"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp v1.ExecuteBatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	for _, res := range resp.Results {
		assert.Equal(t, v1.ActionResultFailed, res.Status)
		require.NotNil(t, res.ErrorCode)
		assert.Equal(t, "UNSUPPORTED_PLATFORM", *res.ErrorCode)
	}
}

func TestBatchRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(router, http.MethodPost, "/automation/actions/execute-batch", testToken, map[string]any{
		"platform_key": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
