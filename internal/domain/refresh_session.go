package domain

import "time"

// RefreshSession is a server-side record backing one refresh token.
//
// Only the SHA-256 hash of the token (TokenHash) is stored. Rotation flips Revoked
// on the current row and inserts a successor; rows are deleted only in bulk when the
// account logs in again, or by the cleanup job.
type RefreshSession struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	TokenHash string `json:"-" gorm:"size:64;uniqueIndex;not null"`

	AccountID int64   `json:"account_id" gorm:"index;not null"`
	Account   Account `json:"-" gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`

	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	Revoked   bool      `json:"revoked" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (RefreshSession) TableName() string { return "refresh_sessions" }

// IsExpired reports whether the session is past its expiry. A session expiring
// exactly at now is treated as expired.
func (s *RefreshSession) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// IsUsable reports whether the session may still be rotated.
func (s *RefreshSession) IsUsable(now time.Time) bool {
	return !s.Revoked && !s.IsExpired(now)
}

// RotateFunc receives the current session, read under the store's lock, and returns
// its successor. Returning an error aborts the rotation without changing anything.
type RotateFunc func(current *RefreshSession) (*RefreshSession, error)
