package router

import (
	"github.com/gin-gonic/gin"

	"vision-gateway/internal/handler"
)

func SetupRouter(r *gin.Engine, hdl handler.Handler) {
	r.GET("/health", hdl.Health)

	api := r.Group("/api")
	{
		api.GET("/models", hdl.ListModels)

		api.POST("/jobs", hdl.SubmitJob)
		api.GET("/jobs", hdl.ListJobs)
		api.GET("/jobs/tasks", hdl.GetBackendTasks)
		api.GET("/jobs/history", hdl.GetJobHistory)
		api.GET("/jobs/:id", hdl.GetJobStatus)
		api.GET("/jobs/:id/result", hdl.GetJobResult)
		api.GET("/jobs/:id/artifacts/:name", hdl.GetArtifact)
		api.GET("/jobs/:id/watch", hdl.WatchJob)
	}
}
