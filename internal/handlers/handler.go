package handlers

import (
	"laserctl/internal/logger"
	"laserctl/internal/scheduler"
	"laserctl/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	roof     scheduler.RoofControl
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, roof scheduler.RoofControl, log *logger.Logger) *Handler {
	return &Handler{services: services, roof: roof, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health and metrics endpoints
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Minimal WebSocket connection (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerLaserRoutes(api)
		h.registerProgramRoutes(api)
		h.registerRoofRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerLaserRoutes(api *gin.RouterGroup) {
	laser := api.Group("/laser")
	{
		laser.POST("/connect", h.connectLaser)
		laser.POST("/disconnect", h.disconnectLaser)
		laser.POST("/fire", h.fireLaser)
		laser.POST("/standby", h.standbyLaser)
		laser.POST("/stop", h.stopLaser)
		// Body example: {"qsdelay_us":150,"frequency":"3.3k","max_temp_c":45,"safety":true}
		laser.POST("/params", h.setParams)
		laser.GET("/state", h.getState)
	}
}

func (h *Handler) registerProgramRoutes(api *gin.RouterGroup) {
	programs := api.Group("/programs")
	{
		programs.POST("", h.saveProgram)
		programs.GET("", h.listPrograms)
		programs.DELETE("", h.removeAllPrograms)
		programs.GET("/status", h.statusAll)
		programs.POST("/start-all", h.startAllPrograms)
		programs.POST("/stop-all", h.stopAllPrograms)

		programs.GET("/:id", h.getProgram)
		programs.DELETE("/:id", h.deleteProgram)
		programs.POST("/:id/duplicate", h.duplicateProgram)
		programs.POST("/:id/start", h.startProgram)
		programs.POST("/:id/stop", h.stopProgram)
		programs.POST("/:id/pause", h.pauseProgram)
		programs.POST("/:id/resume", h.resumeProgram)
		programs.GET("/:id/status", h.programStatus)
		programs.GET("/:id/preview", h.previewProgram)
	}
}

func (h *Handler) registerRoofRoutes(api *gin.RouterGroup) {
	roof := api.Group("/roof")
	{
		roof.POST("/open", h.openRoof)
		roof.POST("/close", h.closeRoof)
		roof.GET("/status", h.roofStatus)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.getLogs)
	api.GET("/telemetry", h.getTelemetry)
}
