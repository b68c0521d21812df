package postgres

import (
	"context"
	"errors"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type accountRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (accountRecord) TableName() string { return "accounts" }

func (r accountRecord) toModel() model.Account {
	return model.Account{
		ID:           r.ID.String(),
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

// PostgresAccountRepo relies on the unique index on accounts.email to
// reject duplicate inserts. Open the gorm handle with TranslateError so
// drivers report gorm.ErrDuplicatedKey.
type PostgresAccountRepo struct {
	db *gorm.DB
}

func NewPostgresAccountRepo(db *gorm.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

func (p *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	var r accountRecord
	res := p.db.WithContext(ctx).Where("email = ?", email).First(&r)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.Account{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.Account{}, customErrors.WrapStoreUnavailable(err, "FindByEmail")
	}

	return r.toModel(), nil
}

func (p *PostgresAccountRepo) Insert(ctx context.Context, email, name, passwordHash string) (model.Account, error) {
	r := accountRecord{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	res := p.db.WithContext(ctx).Create(&r)
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			return model.Account{}, customErrors.ErrConflict
		}
		return model.Account{}, customErrors.WrapStoreUnavailable(err, "Insert")
	}
	return r.toModel(), nil
}

// Ping reports whether the database answers.
func (p *PostgresAccountRepo) Ping(ctx context.Context) error {
	return p.db.WithContext(ctx).Exec("SELECT 1").Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
