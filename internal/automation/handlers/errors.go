package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/service"
	"github.com/syncsocial/syncsocial/internal/common/logger"
)

func handleServiceError(c *gin.Context, log *logger.Logger, err error, fallback string) {
	var notAllowed *service.RunNotAllowedError
	if errors.As(err, &notAllowed) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": notAllowed.Reason})
		return
	}
	if isNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": fallback})
		return
	}
	if isValidationError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

func isValidationError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "required") ||
		strings.Contains(msg, "unsupported") ||
		strings.Contains(msg, "not logged in") ||
		strings.Contains(msg, "not capturable")
}
