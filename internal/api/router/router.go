package router

import (
	"github.com/cuongbtq/recon-queue/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(deps.AllowedOrigins))

	systemHandler := handler.NewSystemHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	// Health check endpoint
	r.GET("/health", systemHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// GET /api/v1/catalog - Collectors, endpoints and lags
		v1.GET("/catalog", systemHandler.Catalog)

		queue := v1.Group("/queues/:variant")
		{
			queue.GET("/summary", jobHandler.Summary)
			queue.GET("/limits", jobHandler.Limits)

			jobs := queue.Group("/jobs")
			{
				// POST /jobs - Enqueue a job
				jobs.POST("", jobHandler.EnqueueJob)

				// GET /jobs - List the queue
				jobs.GET("", jobHandler.ListJobs)

				// DELETE /jobs?confirm=true - Remove every job
				jobs.DELETE("", jobHandler.ClearJobs)

				// POST /jobs/run-pending - Start every pending job
				jobs.POST("/run-pending", jobHandler.RunPending)

				// DELETE /jobs/terminal?confirm=true - Remove completed and failed jobs
				jobs.DELETE("/terminal", jobHandler.ClearTerminal)

				jobs.GET("/:job_id", jobHandler.GetJob)
				jobs.DELETE("/:job_id", jobHandler.DeleteJob)
				jobs.POST("/:job_id/run", jobHandler.RunJob)
				jobs.POST("/:job_id/mark-completed", jobHandler.MarkCompleted)
				jobs.POST("/:job_id/mark-failed", jobHandler.MarkFailed)
			}
		}
	}

	return r
}
