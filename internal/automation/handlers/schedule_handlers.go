package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/dto"
	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/service"
	"github.com/syncsocial/syncsocial/internal/common/logger"
)

type ScheduleHandlers struct {
	service *service.Service
	logger  *logger.Logger
}

func NewScheduleHandlers(svc *service.Service, log *logger.Logger) *ScheduleHandlers {
	return &ScheduleHandlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "schedule-handlers")),
	}
}

func (h *ScheduleHandlers) registerHTTP(router *gin.Engine) {
	api := router.Group("/api/v1/workspaces/:workspace_id")
	api.GET("/schedules", h.httpListSchedules)
	api.POST("/schedules", h.httpCreateSchedule)
	api.GET("/schedules/:schedule_id", h.httpGetSchedule)
	api.PATCH("/schedules/:schedule_id", h.httpUpdateSchedule)
	api.DELETE("/schedules/:schedule_id", h.httpDeleteSchedule)
	api.POST("/schedules/:schedule_id/run-now", h.httpRunNow)
}

func (h *ScheduleHandlers) httpListSchedules(c *gin.Context) {
	schedules, err := h.service.ListSchedules(c.Request.Context(), c.Param("workspace_id"))
	if err != nil {
		h.logger.Error("failed to list schedules", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules"})
		return
	}
	dtos := make([]dto.ScheduleDTO, 0, len(schedules))
	for _, sc := range schedules {
		dtos = append(dtos, dto.FromSchedule(sc))
	}
	c.JSON(http.StatusOK, dto.ListSchedulesResponse{Schedules: dtos, Total: len(dtos)})
}

type httpCreateScheduleRequest struct {
	StrategyID      string         `json:"strategy_id"`
	Enabled         bool           `json:"enabled"`
	Frequency       string         `json:"frequency"`
	ScheduleSpec    map[string]any `json:"schedule_spec,omitempty"`
	RandomConfig    map[string]any `json:"random_config,omitempty"`
	AccountSelector map[string]any `json:"account_selector,omitempty"`
	MaxParallel     int            `json:"max_parallel"`
}

func (h *ScheduleHandlers) httpCreateSchedule(c *gin.Context) {
	var body httpCreateScheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if body.StrategyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "strategy_id is required"})
		return
	}
	sc, err := h.service.CreateSchedule(c.Request.Context(), c.Param("workspace_id"), &service.CreateScheduleRequest{
		StrategyID:      body.StrategyID,
		Enabled:         body.Enabled,
		Frequency:       models.ScheduleFrequency(body.Frequency),
		ScheduleSpec:    body.ScheduleSpec,
		RandomConfig:    body.RandomConfig,
		AccountSelector: body.AccountSelector,
		MaxParallel:     body.MaxParallel,
	})
	if err != nil {
		handleServiceError(c, h.logger, err, "schedule not created")
		return
	}
	c.JSON(http.StatusCreated, dto.FromSchedule(sc))
}

func (h *ScheduleHandlers) httpGetSchedule(c *gin.Context) {
	sc, err := h.service.GetSchedule(c.Request.Context(), c.Param("workspace_id"), c.Param("schedule_id"))
	if err != nil {
		handleServiceError(c, h.logger, err, "schedule not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromSchedule(sc))
}

type httpUpdateScheduleRequest struct {
	Enabled         *bool          `json:"enabled,omitempty"`
	Frequency       *string        `json:"frequency,omitempty"`
	ScheduleSpec    map[string]any `json:"schedule_spec,omitempty"`
	RandomConfig    map[string]any `json:"random_config,omitempty"`
	AccountSelector map[string]any `json:"account_selector,omitempty"`
	MaxParallel     *int           `json:"max_parallel,omitempty"`
}

func (h *ScheduleHandlers) httpUpdateSchedule(c *gin.Context) {
	var body httpUpdateScheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req := &service.UpdateScheduleRequest{
		Enabled:         body.Enabled,
		ScheduleSpec:    body.ScheduleSpec,
		RandomConfig:    body.RandomConfig,
		AccountSelector: body.AccountSelector,
		MaxParallel:     body.MaxParallel,
	}
	if body.Frequency != nil {
		freq := models.ScheduleFrequency(*body.Frequency)
		req.Frequency = &freq
	}
	sc, err := h.service.UpdateSchedule(c.Request.Context(), c.Param("workspace_id"), c.Param("schedule_id"), req)
	if err != nil {
		handleServiceError(c, h.logger, err, "schedule not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromSchedule(sc))
}

func (h *ScheduleHandlers) httpDeleteSchedule(c *gin.Context) {
	if err := h.service.DeleteSchedule(c.Request.Context(), c.Param("workspace_id"), c.Param("schedule_id")); err != nil {
		handleServiceError(c, h.logger, err, "schedule not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *ScheduleHandlers) httpRunNow(c *gin.Context) {
	run, err := h.service.RunNow(c.Request.Context(),
		c.Param("workspace_id"), c.Param("schedule_id"), c.GetHeader("x-requested-by"))
	if err != nil {
		handleServiceError(c, h.logger, err, "schedule not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromRun(run))
}
