package jwt

import (
	"errors"
	"strings"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	"github.com/golang-jwt/jwt/v5"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

type JwtUtilImpl struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

type Option func(*JwtUtilImpl)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(j *JwtUtilImpl) { j.now = now }
}

func NewJWTUtil(cfg *config.Config, opts ...Option) (*JwtUtilImpl, error) {
	if cfg.JWTSecret == "" {
		return nil, customErrors.NewInvalidArgument("empty JWT secret")
	}

	j := &JwtUtilImpl{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		now:    time.Now,
		// Expiry is checked by Verify against the injected clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func (j *JwtUtilImpl) Sign(c model.Claims, ttl time.Duration) (string, model.Claims, error) {
	if ttl <= 0 {
		return "", model.Claims{}, customErrors.NewInvalidArgument("token ttl must be positive")
	}

	now := j.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.AccountID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: c.Email,
		Name:  c.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", model.Claims{}, customErrors.WrapInternal(err, "sign token")
	}

	return signed, toModel(claims), nil
}

func (j *JwtUtilImpl) Verify(raw string) (model.Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return model.Claims{}, customErrors.ErrMalformed
	}
	sig, err := j.parser.DecodeSegment(parts[2])
	if err != nil {
		return model.Claims{}, customErrors.ErrMalformed
	}

	// The signature is checked before anything inside the token is decoded,
	// so a modified header or payload always reports as a signature failure.
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, j.secret); err != nil {
		return model.Claims{}, customErrors.ErrInvalidSignature
	}

	var claims tokenClaims
	_, err = j.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return model.Claims{}, customErrors.ErrInvalidSignature
	case err != nil:
		return model.Claims{}, customErrors.ErrMalformed
	}

	if claims.Subject == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return model.Claims{}, customErrors.ErrMalformed
	}
	if j.issuer != "" && claims.Issuer != j.issuer {
		return model.Claims{}, customErrors.ErrInvalidSignature
	}
	if !j.now().Before(claims.ExpiresAt.Time) {
		return model.Claims{}, customErrors.ErrExpired
	}

	return toModel(claims), nil
}

func toModel(c tokenClaims) model.Claims {
	return model.Claims{
		AccountID: c.Subject,
		Email:     c.Email,
		Name:      c.Name,
		IssuedAt:  c.IssuedAt.Time.UTC(),
		ExpiresAt: c.ExpiresAt.Time.UTC(),
	}
}
