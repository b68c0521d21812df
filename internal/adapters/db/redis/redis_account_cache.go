package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/repo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "account:email:"

	// DefaultTimeout bounds each cache round trip so an unresponsive Redis
	// leaves the store call most of the caller's deadline.
	DefaultTimeout = 100 * time.Millisecond
)

// CachedAccountRepo is a read-through cache in front of another AccountRepo.
// Only found accounts are cached; a miss always reaches the store so a fresh
// signup is visible immediately.
type CachedAccountRepo struct {
	inner   repo.AccountRepo
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	log     *zap.Logger
}

type Option func(*CachedAccountRepo)

// WithTimeout replaces DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *CachedAccountRepo) { r.timeout = d }
}

func NewCachedAccountRepo(inner repo.AccountRepo, client *redis.Client, ttl time.Duration, logger *zap.Logger, opts ...Option) *CachedAccountRepo {
	r := &CachedAccountRepo{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		timeout: DefaultTimeout,
		log:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CachedAccountRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	if a, ok := r.load(ctx, email); ok {
		return a, nil
	}

	a, err := r.inner.FindByEmail(ctx, email)
	if err != nil {
		return model.Account{}, err
	}
	r.store(ctx, a)
	return a, nil
}

func (r *CachedAccountRepo) Insert(ctx context.Context, email, name, passwordHash string) (model.Account, error) {
	a, err := r.inner.Insert(ctx, email, name, passwordHash)
	if err != nil {
		return model.Account{}, err
	}
	r.store(ctx, a)
	return a, nil
}

// load reports a cache hit. Outages and corrupt entries are logged and
// treated as misses; the store stays the source of truth.
func (r *CachedAccountRepo) load(ctx context.Context, email string) (model.Account, bool) {
	cacheCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.Get(cacheCtx, keyPrefix+email).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return model.Account{}, false
	case err != nil:
		r.log.Warn("account cache read failed", zap.Error(err))
		return model.Account{}, false
	}

	var a model.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		r.log.Warn("account cache entry unreadable", zap.Error(err))
		return model.Account{}, false
	}
	return a, true
}

func (r *CachedAccountRepo) store(ctx context.Context, a model.Account) {
	raw, err := json.Marshal(a)
	if err != nil {
		r.log.Warn("account cache encode failed", zap.Error(err))
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Set(cacheCtx, keyPrefix+a.Email, raw, r.ttl).Err(); err != nil {
		r.log.Warn("account cache write failed", zap.Error(err))
	}
}
