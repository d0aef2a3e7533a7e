// Command kriya-server starts the lesson REST API and its gRPC health listener.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shadanga/kriya/internal/config"
	"github.com/shadanga/kriya/internal/limiter"
	"github.com/shadanga/kriya/internal/logger"
	"github.com/shadanga/kriya/internal/migrate"
	"github.com/shadanga/kriya/internal/observability"
	"github.com/shadanga/kriya/internal/repository/postgres"
	grpcserver "github.com/shadanga/kriya/internal/server/grpc"
	"github.com/shadanga/kriya/internal/server/httpapi"
	"github.com/shadanga/kriya/internal/service"
	"github.com/shadanga/kriya/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		// logger is not up yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("env", cfg.Env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	shutdownTracing := observability.InitTracing(ctx, log, observability.TracingConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "kriya",
		Environment: cfg.Env,
		Version:     version,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		Headers:     observability.ParseHeaders(cfg.OTelHeaders),
		SampleRatio: cfg.OTelSampleRatio,
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("otel shutdown", zap.Error(err))
		}
	}()
	var tracer trace.TracerProvider
	if cfg.OTelEnabled {
		tracer = otel.GetTracerProvider()
	}

	db, pool, err := postgres.New(ctx, cfg.DBDSN, postgres.PoolOptions{MaxConns: 20})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrate.Up(ctx, pool); err != nil {
		return err
	}

	verifyPolicy := limiter.Policy{Window: cfg.VerifyWindow, MaxFails: cfg.VerifyMaxFails, BlockFor: cfg.VerifyBlock}
	loginPolicy := limiter.Policy{Window: cfg.LoginWindow, MaxFails: cfg.LoginMaxFails, BlockFor: cfg.LoginBlock}
	var verifyLim, loginLim limiter.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			return err
		}
		verifyLim = limiter.NewRedis(rdb, "kriya", verifyPolicy)
		loginLim = limiter.NewRedis(rdb, "kriya", loginPolicy)
		log.Info("attempt limiter: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		verifyLim = limiter.NewPG(pool, verifyPolicy)
		loginLim = limiter.NewPG(pool, loginPolicy)
		log.Info("attempt limiter: postgres")
	}

	var assets storage.AssetStore
	if cfg.AssetBucket != "" {
		gcs, err := storage.NewGCSStore(ctx, cfg.AssetBucket)
		if err != nil {
			return err
		}
		defer func() { _ = gcs.Close() }()
		assets = gcs
	} else {
		dir := cfg.AssetDir
		if dir == "" {
			dir = "assets"
		}
		ds, err := storage.NewDirStore(dir)
		if err != nil {
			return err
		}
		assets = ds
	}

	users := postgres.NewUserRepo(db)
	lessons := postgres.NewLessonRepo(db)
	enrollments := postgres.NewEnrollmentRepo(db)
	downloads := postgres.NewDownloadRepo(db)

	authSvc := service.NewAuthService(users, []byte(cfg.JWTKey), cfg.AccessTTL, loginLim)
	if cfg.AdminUser != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassword); err != nil {
			return err
		}
		log.Info("admin account ready", zap.String("username", cfg.AdminUser))
	}

	api := httpapi.NewServer(cfg.HTTPAddr, httpapi.Deps{
		Log:         log,
		SignKey:     []byte(cfg.JWTKey),
		Auth:        authSvc,
		Lessons:     service.NewLessonService(lessons, enrollments, assets),
		AccessCodes: service.NewAccessCodeService(lessons, verifyLim, service.WithLogger(log.Named("accesscode"))),
		Downloads:   service.NewDownloadService(downloads, lessons),
		DB:          db,
		CORSOrigins: cfg.CORSOrigins,
		RetryAfter:  cfg.VerifyBlock,
		Tracer:      tracer,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("tls", cfg.TLSCert != ""))
		return api.Run(cfg.TLSCert, cfg.TLSKey)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return api.Shutdown(sctx)
	})
	if cfg.HealthAddr != "" {
		hs := grpcserver.New(log, db, 10*time.Second)
		g.Go(func() error { return hs.ListenAndServe(gctx, cfg.HealthAddr) })
	}
	return g.Wait()
}
