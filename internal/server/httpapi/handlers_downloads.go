package httpapi

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/wire"
)

// POST /api/devices
func (h *handlers) registerDevice(c *gin.Context) {
	var req wire.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid body")
		return
	}
	dev, err := uuid.FromString(req.DeviceID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid deviceId")
		return
	}
	if err := h.Downloads.RegisterDevice(c.Request.Context(), principal(c).UserID, dev, req.Name); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/downloads
func (h *handlers) registerDownload(c *gin.Context) {
	var req wire.RegisterDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid body")
		return
	}
	lesson, err1 := uuid.FromString(req.LessonID)
	dev, err2 := uuid.FromString(req.DeviceID)
	hash, err3 := hex.DecodeString(req.KeyHash)
	if err1 != nil || err2 != nil || err3 != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid lessonId/deviceId/keyHash")
		return
	}
	err := h.Downloads.RegisterDownload(c.Request.Context(), model.DownloadRegistration{
		UserID:   principal(c).UserID,
		LessonID: lesson,
		DeviceID: dev,
		KeyHash:  hash,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/downloads/:id?device=<deviceId>
func (h *handlers) unregisterDownload(c *gin.Context) {
	lesson, ok := idParam(c, "id")
	if !ok {
		return
	}
	dev, err := uuid.FromString(c.Query("device"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid device")
		return
	}
	if err := h.Downloads.Unregister(c.Request.Context(), principal(c).UserID, lesson, dev); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/devices/:id/downloads
func (h *handlers) unregisterDevice(c *gin.Context) {
	dev, ok := idParam(c, "id")
	if !ok {
		return
	}
	n, err := h.Downloads.UnregisterDevice(c.Request.Context(), principal(c).UserID, dev)
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, wire.UnregisterDeviceResponse{Removed: n})
}
