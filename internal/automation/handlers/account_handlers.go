package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/dto"
	"github.com/syncsocial/syncsocial/internal/automation/service"
	"github.com/syncsocial/syncsocial/internal/common/logger"
)

type AccountHandlers struct {
	service *service.Service
	logger  *logger.Logger
}

func NewAccountHandlers(svc *service.Service, log *logger.Logger) *AccountHandlers {
	return &AccountHandlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "account-handlers")),
	}
}

func (h *AccountHandlers) registerHTTP(router *gin.Engine) {
	api := router.Group("/api/v1/workspaces/:workspace_id")
	api.GET("/social-accounts", h.httpListAccounts)
	api.POST("/social-accounts", h.httpCreateAccount)
	api.DELETE("/social-accounts/:account_id", h.httpDeleteAccount)
	api.POST("/social-accounts/:account_id/login-sessions", h.httpStartLoginSession)
	api.GET("/login-sessions/:session_id", h.httpGetLoginSession)
	api.POST("/login-sessions/:session_id/cancel", h.httpCancelLoginSession)
	api.POST("/login-sessions/:session_id/finalize", h.httpFinalizeLoginSession)
}

func (h *AccountHandlers) httpListAccounts(c *gin.Context) {
	accounts, err := h.service.ListSocialAccounts(c.Request.Context(), c.Param("workspace_id"))
	if err != nil {
		h.logger.Error("failed to list social accounts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list social accounts"})
		return
	}
	dtos := make([]dto.SocialAccountDTO, 0, len(accounts))
	for _, acc := range accounts {
		dtos = append(dtos, dto.FromSocialAccount(acc))
	}
	c.JSON(http.StatusOK, dto.ListSocialAccountsResponse{Accounts: dtos, Total: len(dtos)})
}

type httpCreateAccountRequest struct {
	PlatformKey string         `json:"platform_key"`
	Handle      string         `json:"handle"`
	Labels      map[string]any `json:"labels,omitempty"`
}

func (h *AccountHandlers) httpCreateAccount(c *gin.Context) {
	var body httpCreateAccountRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if body.PlatformKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform_key is required"})
		return
	}
	acc, err := h.service.CreateSocialAccount(c.Request.Context(), c.Param("workspace_id"), &service.CreateSocialAccountRequest{
		PlatformKey: body.PlatformKey,
		Handle:      body.Handle,
		Labels:      body.Labels,
	})
	if err != nil {
		handleServiceError(c, h.logger, err, "social account not created")
		return
	}
	c.JSON(http.StatusCreated, dto.FromSocialAccount(acc))
}

func (h *AccountHandlers) httpDeleteAccount(c *gin.Context) {
	if err := h.service.DeleteSocialAccount(c.Request.Context(), c.Param("workspace_id"), c.Param("account_id")); err != nil {
		handleServiceError(c, h.logger, err, "social account not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AccountHandlers) httpStartLoginSession(c *gin.Context) {
	session, err := h.service.StartLoginSession(c.Request.Context(),
		c.Param("workspace_id"), c.Param("account_id"), c.GetHeader("x-requested-by"))
	if err != nil {
		handleServiceError(c, h.logger, err, "social account not found")
		return
	}
	c.JSON(http.StatusCreated, dto.FromLoginSession(session))
}

func (h *AccountHandlers) httpGetLoginSession(c *gin.Context) {
	session, err := h.service.GetLoginSession(c.Request.Context(), c.Param("workspace_id"), c.Param("session_id"))
	if err != nil {
		handleServiceError(c, h.logger, err, "login session not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromLoginSession(session))
}

func (h *AccountHandlers) httpCancelLoginSession(c *gin.Context) {
	session, err := h.service.CancelLoginSession(c.Request.Context(), c.Param("workspace_id"), c.Param("session_id"))
	if err != nil {
		handleServiceError(c, h.logger, err, "login session not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": session.Status})
}

func (h *AccountHandlers) httpFinalizeLoginSession(c *gin.Context) {
	session, err := h.service.FinalizeLoginSession(c.Request.Context(), c.Param("workspace_id"), c.Param("session_id"))
	if err != nil {
		handleServiceError(c, h.logger, err, "login session not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromLoginSession(session))
}
