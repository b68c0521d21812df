package grpc

import (
	"context"
	"errors"
	"time"

	appsvc "github.com/Miraines/MoonyAndStarry/credential-service/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/dto"
	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	lg "github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/log"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"

	version = "v1.0.0"
)

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc    appsvc.Service
	health Pinger
	log    *zap.Logger
}

// NewHandler returns the credential.v1.Auth implementation. health may be nil.
func NewHandler(svc appsvc.Service, health Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		svc:    svc,
		health: health,
		log:    logger,
	}
}

func (h *Handler) SignUp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := dto.SignUpDTO{
		Email:    str(req, "email"),
		Name:     str(req, "name"),
		Password: str(req, "password"),
	}
	h.log.Info("gRPC SignUp", lg.Email(in.Email))

	account, err := h.svc.SignUp(ctx, in)
	if err != nil {
		return nil, h.mapError("SignUp", err)
	}

	return fields(map[string]*structpb.Value{
		"id":         structpb.NewStringValue(account.ID),
		"email":      structpb.NewStringValue(account.Email),
		"name":       structpb.NewStringValue(account.Name),
		"created_at": structpb.NewNumberValue(float64(account.CreatedAt.Unix())),
	}), nil
}

func (h *Handler) SignIn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := dto.SignInDTO{
		Email:    str(req, "email"),
		Password: str(req, "password"),
	}
	h.log.Info("gRPC SignIn", lg.Email(in.Email))

	pair, err := h.svc.SignIn(ctx, in)
	if err != nil {
		return nil, h.mapError("SignIn", err)
	}

	return fields(map[string]*structpb.Value{
		"access_token":  structpb.NewStringValue(pair.AccessToken),
		"refresh_token": structpb.NewStringValue(pair.RefreshToken),
		"access_ttl":    structpb.NewNumberValue(pair.AccessTTL.Seconds()),
		"refresh_ttl":   structpb.NewNumberValue(pair.RefreshTTL.Seconds()),
		"user_id":       structpb.NewStringValue(pair.AccountID),
	}), nil
}

func (h *Handler) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	h.log.Info("gRPC Refresh")

	at, err := h.svc.Refresh(ctx, dto.RefreshDTO{Token: str(req, "refresh_token")})
	if err != nil {
		return nil, h.mapError("Refresh", err)
	}

	return fields(map[string]*structpb.Value{
		"access_token": structpb.NewStringValue(at.Token),
		"access_ttl":   structpb.NewNumberValue(at.TTL.Seconds()),
		"expires_at":   structpb.NewNumberValue(float64(at.ExpiresAt.Unix())),
	}), nil
}

func (h *Handler) Validate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	claims, err := h.svc.Validate(ctx, dto.ValidateDTO{AccessToken: str(req, "access_token")})
	if err != nil {
		return nil, h.mapError("Validate", err)
	}

	return fields(map[string]*structpb.Value{
		"user_id":    structpb.NewStringValue(claims.AccountID),
		"email":      structpb.NewStringValue(claims.Email),
		"name":       structpb.NewStringValue(claims.Name),
		"issued_at":  structpb.NewNumberValue(float64(claims.IssuedAt.Unix())),
		"expires_at": structpb.NewNumberValue(float64(claims.ExpiresAt.Unix())),
	}), nil
}

func (h *Handler) HealthCheck(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	state := StatusServing
	if h.health != nil {
		if err := h.health.Ping(ctx); err != nil {
			h.log.Warn("gRPC HealthCheck store error", zap.Error(err))
			state = StatusNotServing
		}
	}

	return fields(map[string]*structpb.Value{
		"status":    structpb.NewStringValue(state),
		"version":   structpb.NewStringValue(version),
		"timestamp": structpb.NewNumberValue(float64(time.Now().Unix())),
	}), nil
}

func (h *Handler) mapError(method string, err error) error {
	switch {
	case errors.Is(err, customErrors.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, customErrors.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "account already exists")
	case errors.Is(err, customErrors.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, customErrors.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, customErrors.ErrStoreUnavailable):
		h.log.Error("gRPC "+method+" store unavailable", zap.Error(err))
		return status.Error(codes.Unavailable, "service unavailable")
	default:
		h.log.Error("gRPC "+method+" failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func fields(m map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: m}
}
