// Package server exposes the worker node over HTTP for remote cluster mode.
// Routes mirror the control plane's cluster client: session lifecycle under
// /login-sessions and action execution under /automation/actions.
package server

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/browsernode"
	"github.com/syncsocial/syncsocial/internal/browsernode/platforms"
	"github.com/syncsocial/syncsocial/internal/common/httpmw"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	v1 "github.com/syncsocial/syncsocial/pkg/api/v1"
)

// Server is the worker node's HTTP surface.
type Server struct {
	node   *browsernode.Node
	token  string
	logger *logger.Logger
}

// New creates the node server. token authenticates every request except
// /health via the internal-token header.
func New(node *browsernode.Node, token string, log *logger.Logger) *Server {
	return &Server{
		node:   node,
		token:  token,
		logger: log.WithFields(zap.String("component", "node-server")),
	}
}

// Router builds the gin engine with all node routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.OtelTracing("browser-node"))
	router.Use(httpmw.RequestLogger(s.logger, "browser-node"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "browser-node"})
	})

	authed := router.Group("/")
	authed.Use(s.authMiddleware())
	{
		authed.POST("/login-sessions", s.startSession)
		authed.GET("/login-sessions/:id/is-logged-in", s.isLoggedIn)
		authed.GET("/login-sessions/:id/storage-state", s.storageState)
		authed.POST("/login-sessions/:id/stop", s.stopSession)
		authed.POST("/automation/actions/execute", s.executeAction)
		authed.POST("/automation/actions/execute-batch", s.executeBatch)
	}

	return router
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := c.GetHeader(cluster.InternalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid internal token"})
			return
		}
		c.Next()
	}
}

func (s *Server) startSession(c *gin.Context) {
	var req v1.StartLoginSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.node.StartLoginSession(c.Request.Context(), &req)
	if err != nil {
		var unsupported *platforms.ErrUnsupported
		if errors.As(err, &unsupported) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("failed to start login session",
			zap.String("login_session_id", req.LoginSessionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) isLoggedIn(c *gin.Context) {
	loggedIn, err := s.node.IsLoggedIn(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.IsLoggedInResponse{LoggedIn: loggedIn})
}

func (s *Server) storageState(c *gin.Context) {
	state, err := s.node.CaptureStorageState(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.StorageStateResponse{StorageState: state})
}

func (s *Server) stopSession(c *gin.Context) {
	if err := s.node.StopLoginSession(c.Request.Context(), c.Param("id")); err != nil {
		s.respondSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.StopLoginSessionResponse{OK: true})
}

func (s *Server) executeAction(c *gin.Context) {
	var req v1.ExecuteActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.node.Executor().ExecuteAction(&req))
}

func (s *Server) executeBatch(c *gin.Context) {
	var req v1.ExecuteBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.node.ExecuteBatch(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) respondSessionError(c *gin.Context, err error) {
	if errors.Is(err, cluster.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("session operation failed",
		zap.String("login_session_id", c.Param("id")),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
