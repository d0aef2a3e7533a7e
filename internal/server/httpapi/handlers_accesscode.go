package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/wire"
)

// GET /api/lessons/:id/access-code
func (h *handlers) getAccessCode(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	v, err := h.AccessCodes.Get(c.Request.Context(), id, principal(c).Role)
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, wire.AccessCode{
		LessonID:              v.LessonID.String(),
		AccessCodeEnabled:     v.Enabled,
		HasCode:               v.HasCode,
		AccessCode:            v.Code,
		AccessCodeType:        string(v.Type),
		AccessCodeExpiresAt:   v.ExpiresAt,
		AccessCodeGeneratedAt: v.GeneratedAt,
		Expired:               v.Expired,
	})
}

// POST /api/lessons/:id/access-code/generate
func (h *handlers) generateAccessCode(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req wire.GenerateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid body")
		return
	}
	g, err := h.AccessCodes.Generate(c.Request.Context(), id, model.CodeType(req.CodeType), req.ExpiresInMinutes)
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, wire.GeneratedCode{
		AccessCode:            g.Code,
		AccessCodeType:        string(g.Type),
		AccessCodeGeneratedAt: g.GeneratedAt,
		AccessCodeExpiresAt:   g.ExpiresAt,
	})
}

// PUT /api/lessons/:id/access-code/toggle
func (h *handlers) toggleAccessCode(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req wire.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "enabled must be a boolean")
		return
	}
	if err := h.AccessCodes.Toggle(c.Request.Context(), id, *req.Enabled); err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, wire.ToggleResponse{AccessCodeEnabled: *req.Enabled})
}

// DELETE /api/lessons/:id/access-code. Clearing a lesson without a code is a no-op.
func (h *handlers) clearAccessCode(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	err := h.AccessCodes.Clear(c.Request.Context(), id)
	switch {
	case err == nil:
		RespondOK(c, wire.ClearResponse{Cleared: true})
	case errors.Is(err, errs.ErrNoAccessCode):
		RespondOK(c, wire.ClearResponse{Cleared: false})
	default:
		respondErr(c, err)
	}
}

// POST /api/lessons/:id/access-code/verify
func (h *handlers) verifyAccessCode(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req wire.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid body")
		return
	}
	res, err := h.AccessCodes.Verify(c.Request.Context(), id, req.Code, model.VerifyAttempt{
		UserID: principal(c).UserID,
		IP:     c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, errs.ErrRateLimited) && h.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(h.RetryAfter.Seconds())))
		}
		respondErr(c, err)
		return
	}
	RespondOK(c, wire.VerifyResponse{Valid: res.Valid, Error: string(res.Reason)})
}
