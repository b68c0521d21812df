package repo

import (
	"context"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
)

// AccountRepo is the credential store. Implementations enforce email
// uniqueness themselves: Insert must fail with errors.ErrConflict when the
// email is already taken, even under concurrent inserts.
type AccountRepo interface {
	// FindByEmail returns errors.ErrNotFound when no account has the email.
	FindByEmail(ctx context.Context, email string) (model.Account, error)

	Insert(ctx context.Context, email, name, passwordHash string) (model.Account, error)
}
