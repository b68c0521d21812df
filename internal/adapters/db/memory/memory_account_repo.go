package memory

import (
	"context"
	"sync"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
	"github.com/rs/xid"
)

// AccountRepo keeps accounts in process memory. Used for local runs and tests.
type AccountRepo struct {
	mu      sync.RWMutex
	byEmail map[string]model.Account
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{byEmail: make(map[string]model.Account)}
}

func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, customErrors.WrapStoreUnavailable(err, "FindByEmail")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byEmail[email]
	if !ok {
		return model.Account{}, customErrors.ErrNotFound
	}
	return a, nil
}

// Insert checks and writes under one lock, so concurrent inserts of the same
// email resolve to exactly one winner.
func (r *AccountRepo) Insert(ctx context.Context, email, name, passwordHash string) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, customErrors.WrapStoreUnavailable(err, "Insert")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[email]; ok {
		return model.Account{}, customErrors.ErrConflict
	}

	a := model.Account{
		ID:           xid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.byEmail[email] = a
	return a, nil
}
