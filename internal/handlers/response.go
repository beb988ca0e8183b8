package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"laserctl/internal/device"
	"laserctl/internal/repository"
	"laserctl/internal/scheduler"
	"laserctl/internal/service"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// serviceError maps a service-layer error to an HTTP response. Known
// conditions get a precise status; everything else is a 500.
func (h *Handler) serviceError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrProgramNotFound):
		code = http.StatusNotFound
	case errors.Is(err, device.ErrNotConnected),
		errors.Is(err, scheduler.ErrNotConnected),
		errors.Is(err, service.ErrFireBlocked),
		errors.Is(err, scheduler.ErrDisabled),
		errors.Is(err, scheduler.ErrNotRunning):
		code = http.StatusConflict
	case errors.Is(err, service.ErrQSDelayRange),
		errors.Is(err, service.ErrFreqRange),
		errors.Is(err, service.ErrBadFreq):
		code = http.StatusBadRequest
	}
	h.logAndJSONError(c, code, err.Error(), logKey, err, kv...)
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
