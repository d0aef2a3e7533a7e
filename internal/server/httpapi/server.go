// Package httpapi exposes the REST API over gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/service"
)

// Pinger reports backend readiness for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires services into handlers.
type Deps struct {
	Log         *zap.Logger
	SignKey     []byte
	Auth        service.AuthService
	Lessons     service.LessonService
	AccessCodes service.AccessCodeService
	Downloads   service.DownloadService
	DB          Pinger
	CORSOrigins []string
	RetryAfter  time.Duration // advertised on 429 from verify
	// Tracer enables per-request spans when non-nil.
	Tracer trace.TracerProvider
}

type handlers struct {
	Deps
}

// NewRouter builds the gin engine with all routes under /api.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handlers{Deps: d}

	r := gin.New()
	if d.Tracer != nil {
		r.Use(otelgin.Middleware("kriya", otelgin.WithTracerProvider(d.Tracer)), TraceHeaders())
	}
	r.Use(Recovery(d.Log), RequestLogger(d.Log))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	api := r.Group("/api")
	api.GET("/healthz", h.health)
	api.POST("/register", h.register)
	api.POST("/login", h.login)

	authed := api.Group("/")
	authed.Use(RequireAuth(d.SignKey))

	managers := RequireRole(model.RoleAdmin, model.RoleFacilitator)

	authed.POST("/lessons", managers, h.createLesson)
	authed.GET("/lessons/:id", h.getLesson)
	authed.GET("/courses/:id/lessons", h.listLessons)
	authed.GET("/lessons/:id/audio", h.lessonAudio)
	authed.POST("/courses/:id/enrollments", RequireRole(model.RoleAdmin), h.enroll)

	authed.GET("/lessons/:id/access-code", h.getAccessCode)
	authed.POST("/lessons/:id/access-code/generate", managers, h.generateAccessCode)
	authed.PUT("/lessons/:id/access-code/toggle", managers, h.toggleAccessCode)
	authed.DELETE("/lessons/:id/access-code", managers, h.clearAccessCode)
	authed.POST("/lessons/:id/access-code/verify", h.verifyAccessCode)

	authed.POST("/devices", h.registerDevice)
	authed.DELETE("/devices/:id/downloads", h.unregisterDevice)
	authed.POST("/downloads", h.registerDownload)
	authed.DELETE("/downloads/:id", h.unregisterDownload)

	return r
}

// Server owns the http.Server around the router.
type Server struct {
	srv *http.Server
}

// NewServer constructs a Server listening on addr.
func NewServer(addr string, d Deps) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run serves until Shutdown. TLS is used when both files are given.
func (s *Server) Run(certFile, keyFile string) error {
	var err error
	if certFile != "" && keyFile != "" {
		err = s.srv.ListenAndServeTLS(certFile, keyFile)
	} else {
		err = s.srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
