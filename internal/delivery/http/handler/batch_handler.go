package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ota-fleet-manager/internal/usecase/batch"
	"ota-fleet-manager/pkg/utils"
)

type BatchHandler struct {
	service *batch.Service
}

func NewBatchHandler(service *batch.Service) *BatchHandler {
	return &BatchHandler{service: service}
}

func (h *BatchHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/firmwares/batch", h.RunBatch)
}

// RunBatch applies a download or delete across a selection of firmwares.
// Partial failure is a normal outcome, so the response is always 200 with
// per-item results.
func (h *BatchHandler) RunBatch(c *gin.Context) {
	var req batch.RunRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Run(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Batch operation finished", result)
}
