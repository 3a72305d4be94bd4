package router

import (
	"net/http"

	"github.com/cuongbtq/review-photo-queue/internal/api/handler"
	"github.com/cuongbtq/review-photo-queue/shared/metrics"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with one enqueue route
// per registered queue
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if deps.Publisher == nil || !deps.Publisher.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "degraded",
				"service":  "review-photo-api",
				"rabbitmq": "disconnected",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"service":  "review-photo-api",
			"rabbitmq": "connected",
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	jobHandler := handler.NewJobHandler(deps)
	for _, def := range deps.Registry.Definitions() {
		r.POST(def.Route, jobHandler.AddJob(def))
	}

	return r
}
