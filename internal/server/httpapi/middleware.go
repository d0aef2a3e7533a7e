package httpapi

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/wire"
)

// RequestLogger logs method, route, status and duration of each request.
// Payloads are never logged.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", c.ClientIP()),
		}
		if p, ok := PrincipalFromCtx(c.Request.Context()); ok {
			fields = append(fields, zap.String("user", p.UserID.String()))
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("err", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("http", fields...)
		case status >= 400:
			log.Warn("http", fields...)
		default:
			log.Info("http", fields...)
		}
	}
}

// TraceHeaders echoes the active trace id as X-Trace-Id.
func TraceHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			c.Writer.Header().Set("X-Trace-Id", sc.TraceID().String())
		}
		c.Next()
	}
}

// Recovery turns handler panics into 500 responses.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request.URL.Path),
				)
				RespondError(c, http.StatusInternalServerError, wire.CodeInternal, "internal error")
			}
		}()
		c.Next()
	}
}

// RequireAuth verifies the bearer token and stores the Principal.
func RequireAuth(signKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			RespondError(c, http.StatusUnauthorized, wire.CodeUnauthorized, "missing or invalid token")
			return
		}
		p, err := parseAccessToken(signKey, tok)
		if err != nil {
			RespondError(c, http.StatusUnauthorized, wire.CodeUnauthorized, "missing or invalid token")
			return
		}
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// RequireRole admits only the listed roles. Must run after RequireAuth.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromCtx(c.Request.Context())
		if !ok {
			RespondError(c, http.StatusUnauthorized, wire.CodeUnauthorized, "missing or invalid token")
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		RespondError(c, http.StatusForbidden, wire.CodeForbidden, "forbidden")
	}
}

func principal(c *gin.Context) Principal {
	p, _ := PrincipalFromCtx(c.Request.Context())
	return p
}
