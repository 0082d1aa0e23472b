package handlers

import (
	"time"

	"dataglove/internal/logger"
	"dataglove/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options tunes the HTTP surface.
type Options struct {
	// AuthEnabled guards /api/v1 with a bearer token from /auth/sign-in.
	AuthEnabled  bool
	AllowOrigins []string
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	hub      *Hub
	opts     Options
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler. A nil hub gets a private one.
func NewHandler(services *service.Service, hub *Hub, opts Options, log *logger.Logger) *Handler {
	log = logger.OrNop(log)
	if hub == nil {
		hub = NewHub(log)
	}
	return &Handler{services: services, hub: hub, opts: opts, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(h.corsConfig()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// pose stream, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) corsConfig() cors.Config {
	origins := h.opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	if h.opts.AuthEnabled {
		api.Use(h.operatorIdMiddleware)
	}
	{
		api.GET("/pose", h.getPose)
		api.GET("/sources", h.listSources)
		h.registerConnectionRoutes(api)
		h.registerCalibrationRoutes(api)
		api.GET("/refresh-rate", h.getRefreshRate)
		api.PUT("/refresh-rate", h.setRefreshRate)
		api.GET("/events", h.getEvents)
	}
}

func (h *Handler) registerConnectionRoutes(api *gin.RouterGroup) {
	conn := api.Group("/connection")
	{
		// Body example: {"angle_source":"/dev/ttyUSB0","pressure_source":"sim:pressure"}
		conn.POST("", h.connect)
		conn.DELETE("", h.disconnect)
		conn.GET("", h.connectionStatus)
	}
}

func (h *Handler) registerCalibrationRoutes(api *gin.RouterGroup) {
	cal := api.Group("/calibration")
	{
		cal.GET("", h.getCalibration)
		cal.POST("/min", h.setCalibrationMin)
		cal.POST("/max", h.setCalibrationMax)
		cal.POST("/reset", h.resetCalibration)
	}
}
