package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"petshelter/internal/domain"
	"petshelter/internal/pkg/jwt"
	"petshelter/internal/pkg/password"
)

const refreshTokenBytes = 32

// Service registers accounts and runs the login / rotate / logout session lifecycle.
//
// Each account has at most one usable refresh session: login replaces every earlier
// session of the account, rotation revokes the presented session before its successor
// is stored, and logout revokes without replacing.
type Service struct {
	accounts           AccountStore
	sessions           SessionStore
	signer             CredentialSigner
	hasher             PasswordHasher
	denylist           Revoker
	accessTTL          time.Duration
	refreshTTL         time.Duration
	refreshTokenPepper string
	now                func() time.Time
}

func NewService(
	accounts AccountStore,
	sessions SessionStore,
	signer CredentialSigner,
	hasher PasswordHasher,
	denylist Revoker,
	accessTTL time.Duration,
	refreshTTL time.Duration,
	refreshTokenPepper string,
) *Service {
	return &Service{
		accounts:           accounts,
		sessions:           sessions,
		signer:             signer,
		hasher:             hasher,
		denylist:           denylist,
		accessTTL:          accessTTL,
		refreshTTL:         refreshTTL,
		refreshTokenPepper: refreshTokenPepper,
		now:                time.Now,
	}
}

// AccessTTLSeconds is the nominal access-credential lifetime.
func (s *Service) AccessTTLSeconds() int64 {
	return int64(s.accessTTL / time.Second)
}

// RefreshTTL is the lifetime given to every new refresh session.
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AccountView, error) {
	email := normalizeEmail(req.Email)

	exists, err := s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateAccount
	}

	if err := password.CheckStrength(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
		}
		return nil, err
	}

	account := &domain.Account{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		IsActive:     true,
		Role:         domain.RoleUser,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}

	log.Printf("auth_register account_id=%d", account.ID)
	return toAccountView(account), nil
}

// Login checks the credentials, issues an access credential and replaces every refresh
// session of the account with a new one. An unknown email and a wrong password both
// yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("auth_login_failed reason=unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !account.IsActive {
		log.Printf("auth_login_failed reason=deactivated account_id=%d", account.ID)
		return nil, ErrAccountDeactivated
	}

	if err := s.hasher.Verify(account.PasswordHash, req.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			log.Printf("auth_login_failed reason=bad_password account_id=%d", account.ID)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	accessToken, err := s.issueAccess(account)
	if err != nil {
		return nil, err
	}

	now := s.now()
	refreshRaw, refreshHash, err := generateOpaqueRefreshToken(s.refreshTokenPepper)
	if err != nil {
		return nil, err
	}

	session := &domain.RefreshSession{
		TokenHash: refreshHash,
		AccountID: account.ID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.sessions.ReplaceForAccount(ctx, session); err != nil {
		return nil, err
	}

	log.Printf("auth_login account_id=%d session_id=%d", account.ID, session.ID)
	return &LoginResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshRaw,
		AccessTTLSeconds: s.AccessTTLSeconds(),
	}, nil
}

// Rotate exchanges a usable refresh token for a new access credential and a new refresh
// token. The presented token is revoked in the same store transaction that stores its
// successor, so replaying it afterwards fails with ErrSessionInvalid. The access
// credential is signed before that transaction commits; a signing failure leaves the
// presented token usable.
func (s *Service) Rotate(ctx context.Context, refreshRaw string) (*RotateResult, error) {
	refreshRaw = strings.TrimSpace(refreshRaw)
	if refreshRaw == "" {
		return nil, ErrUnknownSession
	}
	hash := hashTokenWithPepper(refreshRaw, s.refreshTokenPepper)

	found, err := s.sessions.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUnknownSession
		}
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, found.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUnknownSession
		}
		return nil, fmt.Errorf("load account %d: %w", found.AccountID, err)
	}

	now := s.now()
	var newRaw, accessToken string

	_, err = s.sessions.Rotate(ctx, hash, func(current *domain.RefreshSession) (*domain.RefreshSession, error) {
		if !current.IsUsable(now) || current.AccountID != account.ID {
			return nil, ErrSessionInvalid
		}

		raw, nextHash, err := generateOpaqueRefreshToken(s.refreshTokenPepper)
		if err != nil {
			return nil, err
		}
		token, err := s.issueAccess(account)
		if err != nil {
			return nil, fmt.Errorf("sign access token: %w", err)
		}
		newRaw, accessToken = raw, token

		return &domain.RefreshSession{
			TokenHash: nextHash,
			AccountID: current.AccountID,
			ExpiresAt: now.Add(s.refreshTTL),
			CreatedAt: now,
		}, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, ErrUnknownSession
		case errors.Is(err, ErrSessionInvalid), errors.Is(err, domain.ErrConflict):
			log.Printf("auth_rotate_rejected reason=revoked_or_expired account_id=%d", account.ID)
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	return &RotateResult{
		AccessToken:      accessToken,
		RefreshToken:     newRaw,
		AccessTTLSeconds: s.AccessTTLSeconds(),
	}, nil
}

// Logout revokes the refresh session (if given and known) and denies the access
// credential (if given and genuine) for the full nominal access lifetime. It never
// fails; store errors are logged and the remaining step still runs.
func (s *Service) Logout(ctx context.Context, accessToken, refreshRaw string) {
	if refreshRaw = strings.TrimSpace(refreshRaw); refreshRaw != "" {
		s.revokeRefresh(ctx, refreshRaw)
	}

	if err := s.RevokeAccess(accessToken); err != nil && !errors.Is(err, ErrMissingAccessToken) {
		log.Printf("auth_logout_skip_deny reason=unverifiable_access_token")
	}
}

// IsAccessDenied reports whether the access credential was revoked before its expiry.
func (s *Service) IsAccessDenied(accessToken string) bool {
	return s.denylist.IsDenied(accessToken)
}

// RevokeAccess denies an access credential the signer accepts. Strings that do not
// verify are never stored, so the denylist only holds credentials that could
// otherwise authenticate.
func (s *Service) RevokeAccess(accessToken string) error {
	if accessToken = strings.TrimSpace(accessToken); accessToken == "" {
		return ErrMissingAccessToken
	}
	if _, err := s.signer.Verify(accessToken); err != nil {
		return ErrInvalidAccessToken
	}
	s.denylist.Deny(accessToken, s.accessTTL)
	return nil
}

// DeactivateAccount blocks future logins and drops every refresh session of the account.
// Access credentials already issued stay valid until they expire or are revoked.
func (s *Service) DeactivateAccount(ctx context.Context, accountID int64) error {
	if err := s.accounts.SetActive(ctx, accountID, false); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	if err := s.sessions.DeleteAllForAccount(ctx, accountID); err != nil {
		return err
	}
	log.Printf("auth_account_deactivated account_id=%d", accountID)
	return nil
}

func (s *Service) GetAccount(ctx context.Context, accountID int64) (*AccountView, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return toAccountView(account), nil
}

func (s *Service) revokeRefresh(ctx context.Context, refreshRaw string) {
	session, err := s.sessions.FindByTokenHash(ctx, hashTokenWithPepper(refreshRaw, s.refreshTokenPepper))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("auth_logout_error step=find_session error=%q", err.Error())
		}
		return
	}
	if err := s.sessions.Revoke(ctx, session); err != nil {
		log.Printf("auth_logout_error step=revoke_session session_id=%d error=%q", session.ID, err.Error())
		return
	}
	log.Printf("auth_logout account_id=%d session_id=%d", session.AccountID, session.ID)
}

func (s *Service) issueAccess(account *domain.Account) (string, error) {
	return s.signer.Sign(account.Email, jwt.AccessClaims{
		Role:      string(account.Role),
		AccountID: account.ID,
	})
}

func generateOpaqueRefreshToken(pepper string) (raw string, hash string, err error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	hash = hashTokenWithPepper(raw, pepper)
	return raw, hash, nil
}

func hashTokenWithPepper(raw, pepper string) string {
	sum := sha256.Sum256([]byte(raw + pepper))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
