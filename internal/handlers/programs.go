package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"laserctl/internal/models"
)

const (
	statusSaved   = "saved"
	statusDeleted = "deleted"
	statusStarted = "started"
	statusPaused  = "paused"
	statusResumed = "resumed"
)

// @Summary      Create or update a program
// @Tags         programs
// @Accept       json
// @Produce      json
// @Param        body  body   models.Program  true  "Program payload; empty id creates"
// @Success      200   {object}  map[string]interface{}  "status, program"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/programs [post]
// @Security     BearerAuth
func (h *Handler) saveProgram(c *gin.Context) {
	var p models.Program
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	saved, err := h.services.Programs.Save(c.Request.Context(), p)
	if err != nil {
		// Validation failures read better as 400 than 500.
		h.logAndJSONError(c, http.StatusBadRequest, err.Error(), "program_save_failed", err, "name", p.Name)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSaved, "program": saved})
}

// @Summary      List programs
// @Tags         programs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, programs"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/programs [get]
// @Security     BearerAuth
func (h *Handler) listPrograms(c *gin.Context) {
	list, err := h.services.Programs.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load programs", "program_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "programs": list})
}

// @Summary      Get one program
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  models.Program
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/programs/{id} [get]
// @Security     BearerAuth
func (h *Handler) getProgram(c *gin.Context) {
	p, err := h.services.Programs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serviceError(c, "program_get_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Delete a program
// @Description  A running instance is stopped first.
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/programs/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteProgram(c *gin.Context) {
	if err := h.services.Programs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.serviceError(c, "program_delete_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDeleted})
}

// @Summary      Duplicate a program
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/programs/{id}/duplicate [post]
// @Security     BearerAuth
func (h *Handler) duplicateProgram(c *gin.Context) {
	p, err := h.services.Programs.Duplicate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serviceError(c, "program_duplicate_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSaved, "program": p})
}

// @Summary      Delete all programs
// @Description  Every running program is stopped first.
// @Tags         programs
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/programs [delete]
// @Security     BearerAuth
func (h *Handler) removeAllPrograms(c *gin.Context) {
	if err := h.services.Programs.RemoveAll(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to remove programs", "program_remove_all_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDeleted})
}

// @Summary      Start a program schedule
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "laser not connected or program disabled"
// @Router       /api/v1/programs/{id}/start [post]
// @Security     BearerAuth
func (h *Handler) startProgram(c *gin.Context) {
	if err := h.services.Programs.Start(c.Request.Context(), c.Param("id")); err != nil {
		h.serviceError(c, "program_start_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStarted})
}

// @Summary      Stop a program schedule
// @Description  Stopping a stopped program is a no-op.
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  map[string]string
// @Router       /api/v1/programs/{id}/stop [post]
// @Security     BearerAuth
func (h *Handler) stopProgram(c *gin.Context) {
	h.services.Programs.Stop(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": statusStopped})
}

// @Summary      Start all enabled programs
// @Tags         programs
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/programs/start-all [post]
// @Security     BearerAuth
func (h *Handler) startAllPrograms(c *gin.Context) {
	if err := h.services.Programs.StartAll(c.Request.Context()); err != nil {
		h.serviceError(c, "program_start_all_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStarted})
}

// @Summary      Stop all programs
// @Tags         programs
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/programs/stop-all [post]
// @Security     BearerAuth
func (h *Handler) stopAllPrograms(c *gin.Context) {
	h.services.Programs.StopAll()
	c.JSON(http.StatusOK, gin.H{"status": statusStopped})
}

// @Summary      Pause a running program
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/programs/{id}/pause [post]
// @Security     BearerAuth
func (h *Handler) pauseProgram(c *gin.Context) {
	if err := h.services.Programs.Pause(c.Param("id")); err != nil {
		h.serviceError(c, "program_pause_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusPaused})
}

// @Summary      Resume a paused program
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/programs/{id}/resume [post]
// @Security     BearerAuth
func (h *Handler) resumeProgram(c *gin.Context) {
	if err := h.services.Programs.Resume(c.Param("id")); err != nil {
		h.serviceError(c, "program_resume_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusResumed})
}

// @Summary      Program runtime status
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  models.ProgramStatus
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/programs/{id}/status [get]
// @Security     BearerAuth
func (h *Handler) programStatus(c *gin.Context) {
	st, err := h.services.Programs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serviceError(c, "program_status_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Status of every program
// @Tags         programs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, statuses"
// @Router       /api/v1/programs/status [get]
// @Security     BearerAuth
func (h *Handler) statusAll(c *gin.Context) {
	list, err := h.services.Programs.StatusAll(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load statuses", "program_status_all_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "statuses": list})
}

// @Summary      Preview the next occurrence
// @Description  Returns the planned cycle count and the fire instants of the next window. ?max caps the instants list.
// @Tags         programs
// @Produce      json
// @Param        id   path   string  true   "Program id"
// @Param        max  query  int     false  "Max fire instants (default 500)"
// @Success      200  {object}  map[string]interface{}  "cycles, fire_times"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/programs/{id}/preview [get]
// @Security     BearerAuth
func (h *Handler) previewProgram(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	max := 0
	if qs := c.Query("max"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil {
			max = v
		}
	}
	cycles, err := h.services.Programs.PreviewCycles(ctx, id)
	if err != nil {
		h.serviceError(c, "program_preview_failed", err, "id", id)
		return
	}
	times, err := h.services.Programs.PreviewFireTimes(ctx, id, max)
	if err != nil {
		h.serviceError(c, "program_preview_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": cycles, "fire_times": times})
}
