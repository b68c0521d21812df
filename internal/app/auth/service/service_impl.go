package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/app/auth/password"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/dto"
	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
	repo "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/repo"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	"github.com/go-playground/validator/v10"
)

type CredentialService interface {
	SignUp(context.Context, dto.SignUpDTO) (model.AccountSummary, error)
	SignIn(context.Context, dto.SignInDTO) (model.TokenPair, error)
}

type TokenService interface {
	Refresh(context.Context, dto.RefreshDTO) (model.AccessToken, error)
	Validate(context.Context, dto.ValidateDTO) (model.Claims, error)
}

// Service is what the transports call.
type Service interface {
	CredentialService
	TokenService
}

type authService struct {
	CredentialService
	TokenService
}

func New(
	ar repo.AccountRepo,
	h password.Hasher,
	codec jwt.TokenCodec,
	cfg *config.Config,
	v *validator.Validate,
) (Service, error) {
	cs, err := NewCredentialService(ar, h, codec, cfg, v)
	if err != nil {
		return nil, err
	}
	return &authService{
		CredentialService: cs,
		TokenService:      NewTokenService(codec, cfg),
	}, nil
}

// dummyPassword plus the longest accepted pepper must stay within the
// hasher's plaintext limit.
const dummyPassword = "dummy-password"

type credentialService struct {
	accounts repo.AccountRepo
	hasher   password.Hasher
	codec    jwt.TokenCodec
	cfg      *config.Config
	v        *validator.Validate

	// Verified against when the email is unknown, so both sign-in failures
	// cost one hash comparison.
	dummyDigest string
}

func NewCredentialService(
	ar repo.AccountRepo,
	h password.Hasher,
	codec jwt.TokenCodec,
	cfg *config.Config,
	v *validator.Validate,
) (CredentialService, error) {
	dummy, err := h.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	return &credentialService{
		accounts:    ar,
		hasher:      h,
		codec:       codec,
		cfg:         cfg,
		v:           v,
		dummyDigest: dummy,
	}, nil
}

func (s *credentialService) SignUp(ctx context.Context, in dto.SignUpDTO) (model.AccountSummary, error) {
	if err := s.v.Struct(in); err != nil {
		return model.AccountSummary{}, customErrors.NewInvalidArgument(err.Error())
	}

	_, err := s.findByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return model.AccountSummary{}, customErrors.ErrAlreadyExists
	case !errors.Is(err, customErrors.ErrNotFound):
		return model.AccountSummary{}, storeError(err, "SignUp")
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if customErrors.IsInvalidArgument(err) {
			return model.AccountSummary{}, err
		}
		return model.AccountSummary{}, customErrors.WrapInternal(err, "SignUp")
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	account, err := s.accounts.Insert(storeCtx, in.Email, in.Name, passwordHash)
	if err != nil {
		// a concurrent signup won the race; the store's unique index decided
		if errors.Is(err, customErrors.ErrConflict) {
			return model.AccountSummary{}, customErrors.ErrAlreadyExists
		}
		return model.AccountSummary{}, storeError(err, "SignUp")
	}

	return account.Summary(), nil
}

func (s *credentialService) SignIn(ctx context.Context, in dto.SignInDTO) (model.TokenPair, error) {
	if err := s.v.Struct(in); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument(err.Error())
	}

	account, err := s.findByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		s.hasher.Verify(in.Password, s.dummyDigest)
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	case err != nil:
		return model.TokenPair{}, storeError(err, "SignIn")
	}

	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		return model.TokenPair{}, customErrors.ErrInvalidCredentials
	}

	claims := model.Claims{
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
	}

	at, atClaims, err := s.codec.Sign(claims, s.cfg.AccessTokenTTL)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "sign access token")
	}
	rt, rtClaims, err := s.codec.Sign(claims, s.cfg.RefreshTokenTTL)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "sign refresh token")
	}

	return model.TokenPair{
		AccessToken:      at,
		RefreshToken:     rt,
		AccessTTL:        s.cfg.AccessTokenTTL,
		RefreshTTL:       s.cfg.RefreshTokenTTL,
		AccessExpiresAt:  atClaims.ExpiresAt,
		RefreshExpiresAt: rtClaims.ExpiresAt,
		AccountID:        account.ID,
	}, nil
}

func (s *credentialService) findByEmail(ctx context.Context, email string) (model.Account, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.accounts.FindByEmail(storeCtx, email)
}

func (s *credentialService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// storeError passes store outages through untouched and wraps anything
// unexpected as internal.
func storeError(err error, op string) error {
	if customErrors.IsStoreUnavailable(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return customErrors.WrapStoreUnavailable(err, op)
	}
	return customErrors.WrapInternal(err, op)
}

type tokenService struct {
	codec jwt.TokenCodec
	cfg   *config.Config
}

func NewTokenService(codec jwt.TokenCodec, cfg *config.Config) TokenService {
	return &tokenService{codec: codec, cfg: cfg}
}

// Refresh mints a new access token from any still-valid token. The presented
// token stays usable until its own expiry; nothing is rotated or revoked.
// An empty token is malformed like any other unparseable one.
func (s *tokenService) Refresh(_ context.Context, in dto.RefreshDTO) (model.AccessToken, error) {
	claims, err := s.codec.Verify(in.Token)
	if err != nil {
		return model.AccessToken{}, customErrors.ErrInvalidToken
	}

	at, atClaims, err := s.codec.Sign(claims.Identity(), s.cfg.AccessTokenTTL)
	if err != nil {
		return model.AccessToken{}, customErrors.WrapInternal(err, "Refresh")
	}

	return model.AccessToken{
		Token:     at,
		TTL:       s.cfg.AccessTokenTTL,
		ExpiresAt: atClaims.ExpiresAt,
	}, nil
}

func (s *tokenService) Validate(_ context.Context, in dto.ValidateDTO) (model.Claims, error) {
	claims, err := s.codec.Verify(in.AccessToken)
	if err != nil {
		return model.Claims{}, customErrors.ErrInvalidToken
	}
	return claims, nil
}
