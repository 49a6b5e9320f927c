package auth

import (
	"strings"

	"petshelter/internal/domain"
)

// RegisterRequest leaves the password length to the hasher, which measures bytes.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required,min=2,max=80,personname"`
	LastName  string `json:"last_name" validate:"required,min=2,max=80,personname"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,phone"`
}

// Normalize trims the free-text fields so validation sees what will be stored.
// The password is left untouched.
func (r *RegisterRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AccountView is the public-safe projection of an account; it never carries the hash.
type AccountView struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     string      `json:"phone,omitempty"`
	IsActive  bool        `json:"is_active"`
	Role      domain.Role `json:"role"`
}

type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	AccessTTLSeconds int64
}

type RotateResult struct {
	AccessToken      string
	RefreshToken     string
	AccessTTLSeconds int64
}

// TokenResponse is the body returned by login and refresh; the refresh token travels
// only in its cookie.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresInSeconds int64  `json:"expires_in"`
}

func toAccountView(a *domain.Account) *AccountView {
	return &AccountView{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Phone:     a.Phone,
		IsActive:  a.IsActive,
		Role:      a.Role,
	}
}
