package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskify/backend/internal/config"
	"taskify/backend/internal/handlers"
	"taskify/backend/internal/middleware"
	"taskify/backend/internal/monitoring"
	"taskify/backend/internal/services"
	"taskify/backend/internal/validation"
)

type Deps struct {
	Config  *config.Config
	Logger  logrus.FieldLogger
	Auth    services.AuthService
	Tasks   services.TaskService
	Monitor *monitoring.Monitor
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
}

func New(d Deps) *gin.Engine {
	validation.Init()

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RecoveryWithLog(d.Logger))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(cors.New(corsConfig(d.Config.Server.CORSAllowedOrigins)))
	r.Use(d.Monitor.Middleware())

	r.GET("/health", d.Monitor.HealthHandler())
	r.GET("/health/live", d.Monitor.LivenessHandler())
	r.GET("/health/ready", d.Monitor.ReadinessHandler())
	r.GET("/metrics", d.Monitor.MetricsHandler())

	api := r.Group("/api/v1")
	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Middleware())
	}
	requireUser := middleware.Authenticate(d.Auth)

	authHandler := handlers.NewAuthHandler(d.Auth)
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/token/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/greet/user", requireUser, authHandler.Greet)
		authGroup.DELETE("/me", requireUser, authHandler.DeleteMe)
	}

	taskHandler := handlers.NewTaskHandler(d.Tasks)
	tasks := api.Group("/tasks", requireUser)
	{
		tasks.POST("", taskHandler.CreateTask)
		tasks.GET("", taskHandler.GetTasks)
		tasks.GET("/:id", taskHandler.GetTaskByID)
		tasks.PATCH("/:id", taskHandler.UpdateTask)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
