package router

import (
	"net/http"

	"github.com/datagrid-io/transferq/internal/api/auth"
	"github.com/datagrid-io/transferq/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint, reachable without credentials
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "transfer-api-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	// Everything under /api/v1 requires an authenticated principal
	v1 := r.Group("/api/v1")
	v1.Use(auth.Middleware(deps.Logger))
	{
		v1.GET("/whoami", jobHandler.Whoami)

		jobs := v1.Group("/jobs")
		{
			// PUT is the canonical submission method; POST is kept for
			// clients that cannot issue PUT
			jobs.PUT("", jobHandler.SubmitJob)
			jobs.POST("", jobHandler.SubmitJob)

			// GET /api/v1/jobs - list jobs in an active state
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - job with its files
			jobs.GET("/:job_id", jobHandler.GetJob)

			// GET /api/v1/jobs/:job_id/:field - single job attribute
			jobs.GET("/:job_id/:field", jobHandler.GetJobField)

			// DELETE /api/v1/jobs/:job_id - cancel a job
			jobs.DELETE("/:job_id", jobHandler.CancelJob)
		}
	}

	return r
}
