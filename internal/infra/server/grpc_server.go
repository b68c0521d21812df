package server

import (
	"context"
	"errors"
	"net"
	"time"

	transport "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/grpc"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/grpc/middleware"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/ratelimit"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 5 * time.Second

// NewGRPCServer builds the server with the interceptor chain and the
// credential.v1.Auth service registered. TLS is used when cert and key are
// both configured. The rate limiter's sweeper stops with ctx.
func NewGRPCServer(ctx context.Context, cfg *config.Config, handler transport.AuthServer, logger *zap.Logger) (*grpc.Server, error) {
	limiter := ratelimit.New(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, ratelimit.DefaultCacheSize, time.Hour)
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(middleware.ChainUnaryServer(logger, limiter)),
	}
	if cfg.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(opts...)
	transport.RegisterAuthServer(grpcServer, handler)
	grpc_prometheus.Register(grpcServer)
	grpc_prometheus.EnableHandlingTimeHistogram()
	reflection.Register(grpcServer)
	return grpcServer, nil
}

// StartGRPCServer serves on cfg.GRPCAddress until ctx is cancelled, then stops
// gracefully, forcing the stop after shutdownTimeout.
func StartGRPCServer(ctx context.Context, cfg *config.Config, handler transport.AuthServer, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return err
	}
	grpcServer, err := NewGRPCServer(ctx, cfg, handler, logger)
	if err != nil {
		_ = lis.Close()
		return err
	}
	return serve(ctx, grpcServer, lis, logger)
}

func serve(ctx context.Context, grpcServer *grpc.Server, lis net.Listener, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("ctx cancelled, stopping gRPC server")

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-time.After(shutdownTimeout):
		grpcServer.Stop()
	case <-done:
	}
	logger.Info("gRPC server stopped")
	return nil
}
