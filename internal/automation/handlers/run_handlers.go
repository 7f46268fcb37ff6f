package handlers

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/dto"
	"github.com/syncsocial/syncsocial/internal/automation/models"
	"github.com/syncsocial/syncsocial/internal/automation/service"
	"github.com/syncsocial/syncsocial/internal/common/logger"
)

type RunHandlers struct {
	service *service.Service
	logger  *logger.Logger
}

func NewRunHandlers(svc *service.Service, log *logger.Logger) *RunHandlers {
	return &RunHandlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "run-handlers")),
	}
}

func (h *RunHandlers) registerHTTP(router *gin.Engine) {
	api := router.Group("/api/v1/workspaces/:workspace_id")
	api.GET("/runs", h.httpListRuns)
	api.GET("/runs/:run_id", h.httpGetRun)
	api.GET("/artifacts/:artifact_id/download", h.httpDownloadArtifact)
}

func (h *RunHandlers) httpListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.service.ListRuns(c.Request.Context(), c.Param("workspace_id"), limit)
	if err != nil {
		h.logger.Error("failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	dtos := make([]dto.RunDTO, 0, len(runs))
	for _, r := range runs {
		dtos = append(dtos, dto.FromRun(r))
	}
	c.JSON(http.StatusOK, dto.ListRunsResponse{Runs: dtos, Total: len(dtos)})
}

func (h *RunHandlers) httpGetRun(c *gin.Context) {
	detail, err := h.service.GetRunDetail(c.Request.Context(), c.Param("workspace_id"), c.Param("run_id"))
	if err != nil {
		handleServiceError(c, h.logger, err, "run not found")
		return
	}

	accountRuns := make([]dto.AccountRunDTO, 0, len(detail.AccountRuns))
	for _, ar := range detail.AccountRuns {
		accountRuns = append(accountRuns, dto.FromAccountRun(ar))
	}
	actions := make([]dto.ActionDTO, 0, len(detail.Actions))
	for _, action := range detail.Actions {
		actions = append(actions, dto.FromAction(action))
	}
	c.JSON(http.StatusOK, dto.RunDetailDTO{
		Run:         dto.FromRun(detail.Run),
		AccountRuns: accountRuns,
		Actions:     actions,
	})
}

func (h *RunHandlers) httpDownloadArtifact(c *gin.Context) {
	artifact, path, err := h.service.ResolveArtifactFile(c.Request.Context(),
		c.Param("workspace_id"), c.Param("artifact_id"))
	if err != nil {
		handleServiceError(c, h.logger, err, "artifact not found")
		return
	}

	contentType := "application/octet-stream"
	if artifact.Type == models.ArtifactTypeScreenshot && filepath.Ext(path) == ".png" {
		contentType = "image/png"
	}
	c.Header("Content-Type", contentType)
	c.FileAttachment(path, filepath.Base(path))
}
