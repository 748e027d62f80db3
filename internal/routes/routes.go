// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial-terminal/internal/config"
	"serial-terminal/internal/handler"
	"serial-terminal/internal/middleware"
	"serial-terminal/internal/service"
	"serial-terminal/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config          *config.Config
	logger          *zap.Logger
	terminalService *service.TerminalService
	wsHandler       *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	terminalService *service.TerminalService,
) *Router {
	return &Router{
		config:          config,
		logger:          logger,
		terminalService: terminalService,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	// Debug mode dumps routes to stdout, so only enable it when asked
	if r.config.App.Debug && !r.config.IsProduction() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// Close disconnects WebSocket clients and stops streaming terminal output
func (r *Router) Close() {
	if r.wsHandler != nil {
		r.wsHandler.Close()
	}
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.terminalService, r.config, r.logger)
	terminalHandler := handler.NewTerminalHandler(r.terminalService, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.terminalService, r.logger)
	r.wsHandler = handler.NewWebSocketHandler(r.terminalService, &r.config.Security, r.logger)

	r.addHealthRoutes(router, healthHandler)

	apiV1 := router.Group("/api/v1")
	r.addDiscoveryRoutes(apiV1, discoveryHandler)
	r.addTerminalRoutes(apiV1, terminalHandler)

	r.addWebSocketRoutes(router, r.wsHandler)

	r.logger.Info("All routes configured successfully")
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine, handler *handler.HealthHandler) {
	health := router.Group("")
	{
		health.GET("/health", handler.HealthCheck)
		health.GET("/ready", handler.ReadinessCheck)
		health.GET("/live", handler.LivenessCheck)
	}
}

// addDiscoveryRoutes sets up serial port discovery routes
func (r *Router) addDiscoveryRoutes(api *gin.RouterGroup, handler *handler.DiscoveryHandler) {
	api.GET("/ports", handler.ScanPorts)
	api.GET("/baud-rates", handler.ListBaudRates)
}

// addTerminalRoutes sets up terminal control routes
func (r *Router) addTerminalRoutes(api *gin.RouterGroup, handler *handler.TerminalHandler) {
	term := api.Group("/terminal")
	{
		term.GET("/status", handler.GetStatus)
		term.POST("/connect", handler.Connect)
		term.POST("/disconnect", handler.Disconnect)
		term.POST("/send", handler.Send)
		term.PUT("/mode", handler.SetMode)
		term.PUT("/timestamps", handler.SetTimestamps)
		term.GET("/records", handler.GetRecords)
	}
}

// addWebSocketRoutes sets up WebSocket routes
func (r *Router) addWebSocketRoutes(router *gin.Engine, handler *handler.WebSocketHandler) {
	ws := router.Group("/ws")
	{
		ws.GET("/terminal", handler.HandleTerminalConnection)
	}
}
