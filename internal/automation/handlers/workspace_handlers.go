package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/dto"
	"github.com/syncsocial/syncsocial/internal/automation/service"
	"github.com/syncsocial/syncsocial/internal/common/logger"
)

type WorkspaceHandlers struct {
	service *service.Service
	logger  *logger.Logger
}

func NewWorkspaceHandlers(svc *service.Service, log *logger.Logger) *WorkspaceHandlers {
	return &WorkspaceHandlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "workspace-handlers")),
	}
}

func (h *WorkspaceHandlers) registerHTTP(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.POST("/workspaces", h.httpCreateWorkspace)
	api.GET("/workspaces/:workspace_id", h.httpGetWorkspace)
}

type httpCreateWorkspaceRequest struct {
	Name string `json:"name"`
}

func (h *WorkspaceHandlers) httpCreateWorkspace(c *gin.Context) {
	var body httpCreateWorkspaceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	ws, err := h.service.CreateWorkspace(c.Request.Context(), body.Name)
	if err != nil {
		handleServiceError(c, h.logger, err, "workspace not created")
		return
	}
	c.JSON(http.StatusCreated, dto.FromWorkspace(ws))
}

func (h *WorkspaceHandlers) httpGetWorkspace(c *gin.Context) {
	ws, err := h.service.GetWorkspace(c.Request.Context(), c.Param("workspace_id"))
	if err != nil {
		handleServiceError(c, h.logger, err, "workspace not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromWorkspace(ws))
}
