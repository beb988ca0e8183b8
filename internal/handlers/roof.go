package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	statusOpening = "opening"
	statusClosing = "closing"
)

// @Summary      Open the roof
// @Tags         roof
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/roof/open [post]
// @Security     BearerAuth
func (h *Handler) openRoof(c *gin.Context) {
	if err := h.roof.OpenRoof(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, "roof open failed", "roof_open_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOpening})
}

// @Summary      Close the roof
// @Tags         roof
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/roof/close [post]
// @Security     BearerAuth
func (h *Handler) closeRoof(c *gin.Context) {
	if err := h.roof.CloseRoof(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, "roof close failed", "roof_close_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusClosing})
}

// @Summary      Cached roof state
// @Description  The limit-sensor reading; UNKNOWN when stale or unavailable.
// @Tags         roof
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/roof/status [get]
// @Security     BearerAuth
func (h *Handler) roofStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"roof_state": string(h.roof.RoofState())})
}
