package model

import "time"

// Account is a stored credential record. PasswordHash is never the plaintext.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Summary drops the password hash.
func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		CreatedAt: a.CreatedAt,
	}
}

type AccountSummary struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Claims is the identifying payload signed into a token.
// IssuedAt and ExpiresAt are zero until the claims are signed.
type Claims struct {
	AccountID string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity returns a copy without issued-at/expiry, ready to be signed again.
func (c Claims) Identity() Claims {
	return Claims{
		AccountID: c.AccountID,
		Email:     c.Email,
		Name:      c.Name,
	}
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	AccountID        string
}

type AccessToken struct {
	Token     string
	TTL       time.Duration
	ExpiresAt time.Time
}
