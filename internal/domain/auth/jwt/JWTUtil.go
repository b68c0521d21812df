package jwt

import (
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
)

// TokenCodec signs and verifies bearer tokens.
type TokenCodec interface {
	// Sign stamps issued-at and expiry (now + ttl) and returns the token with
	// the claims exactly as embedded.
	Sign(claims model.Claims, ttl time.Duration) (token string, signed model.Claims, err error)

	// Verify fails with errors.ErrMalformed, errors.ErrInvalidSignature or
	// errors.ErrExpired.
	Verify(token string) (model.Claims, error)
}
