package auth

import (
	"context"
	"time"

	"petshelter/internal/domain"
	"petshelter/internal/pkg/jwt"
)

// AccountStore is the subset of account persistence the auth service uses
type AccountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// SessionStore persists refresh sessions.
// ReplaceForAccount and Rotate must each be atomic with respect to other calls for the
// same account.
type SessionStore interface {
	FindByTokenHash(ctx context.Context, hash string) (*domain.RefreshSession, error)
	Revoke(ctx context.Context, s *domain.RefreshSession) error
	DeleteAllForAccount(ctx context.Context, accountID int64) error
	ReplaceForAccount(ctx context.Context, s *domain.RefreshSession) error
	Rotate(ctx context.Context, hash string, fn domain.RotateFunc) (*domain.RefreshSession, error)
}

// CredentialSigner issues access credentials and checks the ones it issued.
type CredentialSigner interface {
	Sign(subject string, claims jwt.AccessClaims) (string, error)
	Verify(token string) (*jwt.Claims, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) error
}

// Revoker is the denylist side the service writes to on logout.
type Revoker interface {
	Deny(token string, ttl time.Duration)
	IsDenied(token string) bool
}
