package server

import (
	"context"
	"net"
	"testing"
	"time"

	transport "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/grpc"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/dto"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

type nopSvc struct{}

func (nopSvc) SignUp(context.Context, dto.SignUpDTO) (model.AccountSummary, error) {
	return model.AccountSummary{}, nil
}
func (nopSvc) SignIn(context.Context, dto.SignInDTO) (model.TokenPair, error) {
	return model.TokenPair{}, nil
}
func (nopSvc) Refresh(context.Context, dto.RefreshDTO) (model.AccessToken, error) {
	return model.AccessToken{}, nil
}
func (nopSvc) Validate(context.Context, dto.ValidateDTO) (model.Claims, error) {
	return model.Claims{}, nil
}

func TestServe_HealthCheckAndShutdown(t *testing.T) {
	cfg := &config.Config{RateLimitRPS: 100, RateLimitBurst: 100}
	logger := zap.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := NewGRPCServer(ctx, cfg, transport.NewHandler(nopSvc{}, nil, logger), logger)
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, lis, logger) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := transport.NewAuthClient(conn).HealthCheck(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	require.Equal(t, transport.StatusServing, resp.Fields["status"].GetStringValue())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("server did not stop")
	}
}

func TestNewGRPCServer_BadTLSFiles(t *testing.T) {
	cfg := &config.Config{
		RateLimitRPS:   1,
		RateLimitBurst: 1,
		HTTPSCertFile:  "/does/not/exist.crt",
		HTTPSKeyFile:   "/does/not/exist.key",
	}
	_, err := NewGRPCServer(testContext(t), cfg, transport.NewHandler(nopSvc{}, nil, zap.NewNop()), zap.NewNop())
	require.Error(t, err)
}
