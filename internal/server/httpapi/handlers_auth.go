package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/wire"
)

// GET /api/healthz
func (h *handlers) health(c *gin.Context) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			_ = c.Error(err)
			RespondError(c, http.StatusServiceUnavailable, wire.CodeUnavailable, "database unavailable")
			return
		}
	}
	RespondOK(c, wire.Health{Status: "ok"})
}

// POST /api/register. Self-registration always yields a learner; other
// roles need an admin token.
func (h *handlers) register(c *gin.Context) {
	var req wire.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid body")
		return
	}
	role := model.Role(req.Role)
	if role != "" && role != model.RoleLearner {
		tok, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			RespondError(c, http.StatusForbidden, wire.CodeForbidden, "only admins may assign roles")
			return
		}
		p, err := parseAccessToken(h.SignKey, tok)
		if err != nil || p.Role != model.RoleAdmin {
			RespondError(c, http.StatusForbidden, wire.CodeForbidden, "only admins may assign roles")
			return
		}
	}
	id, err := h.Auth.Register(c.Request.Context(), req.Username, req.Password, role)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, wire.RegisterResponse{UserID: id.String()})
}

// POST /api/login
func (h *handlers) login(c *gin.Context) {
	var req wire.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, wire.CodeValidation, "invalid body")
		return
	}
	tok, u, err := h.Auth.LoginWithIP(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		respondErr(c, err)
		return
	}
	RespondOK(c, wire.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		UserID:      u.ID.String(),
		Username:    u.Username,
		Role:        string(u.Role),
	})
}
