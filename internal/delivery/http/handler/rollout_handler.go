package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ota-fleet-manager/internal/usecase/rollout"
	"ota-fleet-manager/pkg/utils"
)

type RolloutHandler struct {
	service *rollout.Service
}

func NewRolloutHandler(service *rollout.Service) *RolloutHandler {
	return &RolloutHandler{service: service}
}

func (h *RolloutHandler) RegisterRoutes(router *gin.RouterGroup) {
	rollouts := router.Group("/rollouts")
	{
		rollouts.GET("", h.ListRollouts)
		rollouts.POST("", h.ScheduleRollout)
		rollouts.GET("/summary", h.GetSummary)
		rollouts.GET("/:id", h.GetRollout)
		rollouts.POST("/:id/start", h.StartRollout)
		rollouts.PUT("/:id/progress", h.ReportProgress)
		rollouts.POST("/:id/complete", h.CompleteRollout)
		rollouts.POST("/:id/cancel", h.CancelRollout)
	}
}

func (h *RolloutHandler) ScheduleRollout(c *gin.Context) {
	var req rollout.ScheduleRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	scheduled, err := h.service.Schedule(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Rollout scheduled successfully", scheduled)
}

func (h *RolloutHandler) GetRollout(c *gin.Context) {
	rolloutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid rollout ID")
		return
	}

	found, err := h.service.Get(c.Request.Context(), rolloutID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Rollout retrieved successfully", found)
}

func (h *RolloutHandler) ListRollouts(c *gin.Context) {
	var filter rollout.RolloutFilterRequest

	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	rollouts, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Rollouts retrieved successfully", rollouts)
}

func (h *RolloutHandler) GetSummary(c *gin.Context) {
	var deviceID *uuid.UUID
	if raw := c.Query("device_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid device ID")
			return
		}
		deviceID = &parsed
	}

	summary, err := h.service.Summary(c.Request.Context(), deviceID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Rollout summary retrieved successfully", summary)
}

func (h *RolloutHandler) StartRollout(c *gin.Context) {
	rolloutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid rollout ID")
		return
	}

	started, err := h.service.Start(c.Request.Context(), rolloutID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Rollout started successfully", started)
}

func (h *RolloutHandler) ReportProgress(c *gin.Context) {
	rolloutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid rollout ID")
		return
	}

	var req rollout.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	advanced, err := h.service.Advance(c.Request.Context(), rolloutID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Progress recorded successfully", advanced)
}

func (h *RolloutHandler) CompleteRollout(c *gin.Context) {
	rolloutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid rollout ID")
		return
	}

	var req rollout.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	completed, err := h.service.Complete(c.Request.Context(), rolloutID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Rollout completed successfully", completed)
}

func (h *RolloutHandler) CancelRollout(c *gin.Context) {
	rolloutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid rollout ID")
		return
	}

	cancelled, err := h.service.Cancel(c.Request.Context(), rolloutID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Rollout cancelled successfully", cancelled)
}
