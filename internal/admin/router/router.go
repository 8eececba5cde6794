package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vutran-dev/relay-be/internal/admin/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "relay-admin-api",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "relay-admin-api",
		})
	})

	deadLetterHandler := handler.NewDeadLetterHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		deadLetters := v1.Group("/dead-letters")
		{
			deadLetters.GET("", deadLetterHandler.ListDeadLetters)
			deadLetters.GET("/:id", deadLetterHandler.GetDeadLetter)
			deadLetters.POST("/:id/requeue", deadLetterHandler.RequeueDeadLetter)
		}
	}

	return r
}
