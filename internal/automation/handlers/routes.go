// Package handlers exposes the automation HTTP API.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/syncsocial/syncsocial/internal/automation/service"
	"github.com/syncsocial/syncsocial/internal/common/logger"
)

// RegisterRoutes mounts every automation API handler group on the router.
func RegisterRoutes(router *gin.Engine, svc *service.Service, log *logger.Logger) {
	NewWorkspaceHandlers(svc, log).registerHTTP(router)
	NewAccountHandlers(svc, log).registerHTTP(router)
	NewStrategyHandlers(svc, log).registerHTTP(router)
	NewScheduleHandlers(svc, log).registerHTTP(router)
	NewRunHandlers(svc, log).registerHTTP(router)
}
