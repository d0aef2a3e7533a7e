// Package grpcserver runs the gRPC side listener that answers
// grpc.health.v1 probes for the API process.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the empty
// (whole-server) name.
const ServiceName = "kriya.API"

// Pinger is the readiness dependency polled by the probe loop.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the grpc.Server and the health status it publishes.
type Server struct {
	log   *zap.Logger
	db    Pinger
	every time.Duration

	gs *grpc.Server
	hs *health.Server
}

// New builds a health server. every <= 0 means 10s.
func New(log *zap.Logger, db Pinger, every time.Duration) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if every <= 0 {
		every = 10 * time.Second
	}
	s := &Server{
		log:   log,
		db:    db,
		every: every,
		hs:    health.NewServer(),
		gs: grpc.NewServer(
			grpc.ChainUnaryInterceptor(
				RecoverUnary(log),
				LoggingUnary(log),
			),
			grpc.ChainStreamInterceptor(
				RecoverStream(log),
				LoggingStream(log),
			),
		),
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.gs, s.hs)
	return s
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve answers probes on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.hs.Shutdown()
		s.gs.GracefulStop()
	}()

	s.log.Info("health listening", zap.String("addr", lis.Addr().String()))
	err := s.gs.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (s *Server) watch(ctx context.Context) {
	s.probe(ctx)
	t := time.NewTicker(s.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.probe(ctx)
		}
	}
}

func (s *Server) probe(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		pctx, cancel := context.WithTimeout(ctx, s.every/2+time.Second)
		err := s.db.Ping(pctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("readiness probe failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.set(st)
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.hs.SetServingStatus("", st)
	s.hs.SetServingStatus(ServiceName, st)
}
