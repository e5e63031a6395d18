package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ota-fleet-manager/internal/usecase/firmware"
	"ota-fleet-manager/pkg/utils"
)

type FirmwareHandler struct {
	service        *firmware.Service
	maxUploadBytes int64
}

func NewFirmwareHandler(service *firmware.Service, maxUploadBytes int64) *FirmwareHandler {
	return &FirmwareHandler{service: service, maxUploadBytes: maxUploadBytes}
}

func (h *FirmwareHandler) RegisterRoutes(router *gin.RouterGroup) {
	firmwares := router.Group("/firmwares")
	{
		firmwares.GET("", h.ListFirmwares)
		firmwares.POST("/upload", h.UploadFirmware)
		firmwares.GET("/:id", h.GetFirmware)
		firmwares.GET("/:id/download", h.DownloadFirmware)
		firmwares.DELETE("/:id", h.DeleteFirmware)
	}
}

// UploadFirmware accepts a multipart form with the image file plus the target
// device and version, stores the binary and schedules the push in one step.
func (h *FirmwareHandler) UploadFirmware(c *gin.Context) {
	var req firmware.UploadRequest

	if err := c.ShouldBind(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid form fields")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Firmware file is required")
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Firmware file exceeds the %d byte limit", h.maxUploadBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to read firmware file")
		return
	}
	defer file.Close()

	uploaded, err := h.service.Upload(c.Request.Context(), &req, fileHeader.Filename, file)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Firmware uploaded successfully", uploaded)
}

func (h *FirmwareHandler) GetFirmware(c *gin.Context) {
	firmwareID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid firmware ID")
		return
	}

	found, err := h.service.Get(c.Request.Context(), firmwareID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Firmware retrieved successfully", found)
}

func (h *FirmwareHandler) ListFirmwares(c *gin.Context) {
	var filter firmware.FirmwareFilterRequest

	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	firmwares, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Firmwares retrieved successfully", firmwares)
}

// DownloadFirmware streams the stored binary with its original file name.
func (h *FirmwareHandler) DownloadFirmware(c *gin.Context) {
	firmwareID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid firmware ID")
		return
	}

	reader, meta, err := h.service.Download(c.Request.Context(), firmwareID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	defer reader.Close()

	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", meta.OriginalFileName),
		"X-Checksum-SHA256":   meta.Checksum,
	}
	c.DataFromReader(http.StatusOK, meta.SizeBytes, "application/octet-stream", reader, headers)
}

func (h *FirmwareHandler) DeleteFirmware(c *gin.Context) {
	firmwareID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid firmware ID")
		return
	}

	if err := h.service.Delete(c.Request.Context(), firmwareID); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Firmware deleted successfully", nil)
}
