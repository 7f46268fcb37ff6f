package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/dto"
	"github.com/syncsocial/syncsocial/internal/automation/service"
	"github.com/syncsocial/syncsocial/internal/common/logger"
)

type StrategyHandlers struct {
	service *service.Service
	logger  *logger.Logger
}

func NewStrategyHandlers(svc *service.Service, log *logger.Logger) *StrategyHandlers {
	return &StrategyHandlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "strategy-handlers")),
	}
}

func (h *StrategyHandlers) registerHTTP(router *gin.Engine) {
	api := router.Group("/api/v1/workspaces/:workspace_id")
	api.GET("/strategies", h.httpListStrategies)
	api.POST("/strategies", h.httpCreateStrategy)
	api.GET("/strategies/:strategy_id", h.httpGetStrategy)
	api.PATCH("/strategies/:strategy_id", h.httpUpdateStrategy)
	api.DELETE("/strategies/:strategy_id", h.httpDeleteStrategy)
}

func (h *StrategyHandlers) httpListStrategies(c *gin.Context) {
	strategies, err := h.service.ListStrategies(c.Request.Context(), c.Param("workspace_id"))
	if err != nil {
		h.logger.Error("failed to list strategies", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list strategies"})
		return
	}
	dtos := make([]dto.StrategyDTO, 0, len(strategies))
	for _, st := range strategies {
		dtos = append(dtos, dto.FromStrategy(st))
	}
	c.JSON(http.StatusOK, dto.ListStrategiesResponse{Strategies: dtos, Total: len(dtos)})
}

type httpCreateStrategyRequest struct {
	Name        string         `json:"name"`
	PlatformKey string         `json:"platform_key"`
	Config      map[string]any `json:"config"`
}

func (h *StrategyHandlers) httpCreateStrategy(c *gin.Context) {
	var body httpCreateStrategyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if body.PlatformKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform_key is required"})
		return
	}
	st, err := h.service.CreateStrategy(c.Request.Context(), c.Param("workspace_id"), &service.CreateStrategyRequest{
		Name:        body.Name,
		PlatformKey: body.PlatformKey,
		Config:      body.Config,
	})
	if err != nil {
		handleServiceError(c, h.logger, err, "strategy not created")
		return
	}
	c.JSON(http.StatusCreated, dto.FromStrategy(st))
}

func (h *StrategyHandlers) httpGetStrategy(c *gin.Context) {
	st, err := h.service.GetStrategy(c.Request.Context(), c.Param("workspace_id"), c.Param("strategy_id"))
	if err != nil {
		handleServiceError(c, h.logger, err, "strategy not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromStrategy(st))
}

type httpUpdateStrategyRequest struct {
	Name   *string        `json:"name,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

func (h *StrategyHandlers) httpUpdateStrategy(c *gin.Context) {
	var body httpUpdateStrategyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	st, err := h.service.UpdateStrategy(c.Request.Context(), c.Param("workspace_id"), c.Param("strategy_id"), &service.UpdateStrategyRequest{
		Name:   body.Name,
		Config: body.Config,
	})
	if err != nil {
		handleServiceError(c, h.logger, err, "strategy not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromStrategy(st))
}

func (h *StrategyHandlers) httpDeleteStrategy(c *gin.Context) {
	if err := h.service.DeleteStrategy(c.Request.Context(), c.Param("workspace_id"), c.Param("strategy_id")); err != nil {
		handleServiceError(c, h.logger, err, "strategy not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
