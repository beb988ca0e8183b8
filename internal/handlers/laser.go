package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
	statusFiring       = "firing"
	statusStandby      = "standby"
	statusStopped      = "stopped"
	statusParamsSet    = "params_set"
)

// Request DTO for device parameter changes. All fields optional; only the
// ones present are applied.
type paramsRequest struct {
	QSDelayUs *int     `json:"qsdelay_us,omitempty"` // 0..400
	Frequency *string  `json:"frequency,omitempty"`  // e.g. "3", "3.3k", "0.000022M"
	MaxTempC  *float64 `json:"max_temp_c,omitempty"`
	Safety    *bool    `json:"safety,omitempty"`
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Connect to the laser
// @Tags         laser
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/laser/connect [post]
// @Security     BearerAuth
func (h *Handler) connectLaser(c *gin.Context) {
	if err := h.services.Laser.Connect(c.Request.Context()); err != nil {
		h.serviceError(c, "laser_connect_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusConnected, gin.H{})
}

// @Summary      Disconnect from the laser
// @Tags         laser
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/laser/disconnect [post]
// @Security     BearerAuth
func (h *Handler) disconnectLaser(c *gin.Context) {
	if err := h.services.Laser.Disconnect(c.Request.Context()); err != nil {
		h.serviceError(c, "laser_disconnect_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusDisconnected, gin.H{})
}

// @Summary      Manual fire
// @Description  Goes through the roof interlock; blocked fires return 409.
// @Tags         laser
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/laser/fire [post]
// @Security     BearerAuth
func (h *Handler) fireLaser(c *gin.Context) {
	if err := h.services.Laser.Fire(c.Request.Context()); err != nil {
		h.serviceError(c, "laser_fire_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusFiring, gin.H{})
}

// @Summary      Manual standby
// @Tags         laser
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/laser/standby [post]
// @Security     BearerAuth
func (h *Handler) standbyLaser(c *gin.Context) {
	if err := h.services.Laser.Standby(c.Request.Context()); err != nil {
		h.serviceError(c, "laser_standby_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusStandby, gin.H{})
}

// @Summary      Emergency stop
// @Tags         laser
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/laser/stop [post]
// @Security     BearerAuth
func (h *Handler) stopLaser(c *gin.Context) {
	if err := h.services.Laser.Stop(c.Request.Context()); err != nil {
		h.serviceError(c, "laser_stop_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusStopped, gin.H{})
}

// @Summary      Set device parameters
// @Description  Applies any of qsdelay_us, frequency, max_temp_c, safety.
// @Tags         laser
// @Accept       json
// @Produce      json
// @Param        body  body   paramsRequest  true  "Parameters payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/laser/params [post]
// @Security     BearerAuth
func (h *Handler) setParams(c *gin.Context) {
	var req paramsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	ctx := c.Request.Context()
	applied := gin.H{}

	if req.QSDelayUs != nil {
		if err := h.services.Laser.SetQSDelay(ctx, *req.QSDelayUs); err != nil {
			h.serviceError(c, "laser_set_qsdelay_failed", err, "qsdelay_us", *req.QSDelayUs)
			return
		}
		applied["qsdelay_us"] = *req.QSDelayUs
	}
	if req.Frequency != nil {
		hz, err := h.services.Laser.SetFrequency(ctx, *req.Frequency)
		if err != nil {
			h.serviceError(c, "laser_set_frequency_failed", err, "frequency", *req.Frequency)
			return
		}
		applied["frequency_hz"] = hz
	}
	if req.MaxTempC != nil {
		h.services.Laser.SetMaxTemp(*req.MaxTempC)
		applied["max_temp_c"] = *req.MaxTempC
	}
	if req.Safety != nil {
		h.services.Laser.SetSafety(*req.Safety)
		applied["safety"] = *req.Safety
	}
	h.respondWithStatusAndState(c, statusParamsSet, applied)
}

// @Summary      Get laser state
// @Tags         laser
// @Produce      json
// @Success      200  {object}  models.LaserState
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/laser/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load state", "laser_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
