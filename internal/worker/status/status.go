package status

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/review-photo-queue/shared/metrics"
	"github.com/gin-gonic/gin"
)

// Database reports whether the review store is reachable
type Database interface {
	HealthCheck(ctx context.Context) error
}

// Broker reports whether the shared AMQP connection is up
type Broker interface {
	IsConnected() bool
}

// NewRouter serves /health and /metrics for the worker process
func NewRouter(logger *slog.Logger, db Database, broker Broker) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "connected"
		if err := db.HealthCheck(ctx); err != nil {
			logger.Warn("Database health check failed", slog.Any("error", err))
			dbStatus = "disconnected"
		}

		brokerStatus := "connected"
		if !broker.IsConnected() {
			brokerStatus = "disconnected"
		}

		code, state := http.StatusOK, "healthy"
		if dbStatus != "connected" || brokerStatus != "connected" {
			code, state = http.StatusServiceUnavailable, "degraded"
		}

		c.JSON(code, gin.H{
			"status":   state,
			"service":  "review-photo-worker",
			"database": dbStatus,
			"rabbitmq": brokerStatus,
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}
