package handler

import (
	"github.com/gin-gonic/gin"

	"vision-gateway/internal/dto"
	"vision-gateway/internal/response"
)

func (h Handler) ListModels(c *gin.Context) {
	response.Success(c, h.Gateway.Backends())
}

func (h Handler) GetBackendTasks(c *gin.Context) {
	var req dto.GetBackendTasksReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorResponse(c, bindError(err))
		return
	}

	data, err := h.Gateway.TasksForBackend(req.Model)
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, data)
}

func (h Handler) Health(c *gin.Context) {
	response.Success(c, h.Gateway.Health())
}
