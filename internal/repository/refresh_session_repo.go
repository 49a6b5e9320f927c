package repository

import (
	"context"
	"time"

	"petshelter/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRetention is how long a refresh session outlives its expiry before it is
// purged. Expired and revoked rows stay readable for that window so replays keep being
// reported as invalid instead of unknown.
const SessionRetention = 30 * 24 * time.Hour

// RefreshSessionRepository stores refresh sessions in the SQL database.
//
// Login and rotation both take a row lock on the owning account before touching its
// sessions, so the two flows are serialized per account.
type RefreshSessionRepository struct {
	db *gorm.DB
}

func NewRefreshSessionRepository(db *gorm.DB) *RefreshSessionRepository {
	return &RefreshSessionRepository{db: db}
}

func (r *RefreshSessionRepository) FindByTokenHash(ctx context.Context, hash string) (*domain.RefreshSession, error) {
	var s domain.RefreshSession
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&s).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &s, nil
}

func (r *RefreshSessionRepository) ListForAccount(ctx context.Context, accountID int64) ([]domain.RefreshSession, error) {
	var out []domain.RefreshSession
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *RefreshSessionRepository) Revoke(ctx context.Context, s *domain.RefreshSession) error {
	if err := r.db.WithContext(ctx).
		Model(&domain.RefreshSession{}).
		Where("id = ?", s.ID).
		Update("revoked", true).Error; err != nil {
		return err
	}
	s.Revoked = true
	return nil
}

func (r *RefreshSessionRepository) DeleteAllForAccount(ctx context.Context, accountID int64) error {
	return r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&domain.RefreshSession{}).Error
}

// ReplaceForAccount deletes every session of s.AccountID and inserts s in one transaction.
func (r *RefreshSessionRepository) ReplaceForAccount(ctx context.Context, s *domain.RefreshSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockAccount(tx, s.AccountID); err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", s.AccountID).Delete(&domain.RefreshSession{}).Error; err != nil {
			return err
		}
		return tx.Create(s).Error
	})
}

// Rotate revokes the session identified by hash and inserts the successor built by fn,
// both in one transaction. The old row is revoked before the successor is written.
func (r *RefreshSessionRepository) Rotate(ctx context.Context, hash string, fn domain.RotateFunc) (*domain.RefreshSession, error) {
	var next *domain.RefreshSession

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var located domain.RefreshSession
		if err := tx.Select("id", "account_id").Where("token_hash = ?", hash).First(&located).Error; err != nil {
			return translateNotFound(err)
		}
		if err := lockAccount(tx, located.AccountID); err != nil {
			return err
		}

		// Re-read under lock: a concurrent login may have deleted the row meanwhile.
		var current domain.RefreshSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, located.ID).Error; err != nil {
			return translateNotFound(err)
		}

		successor, err := fn(&current)
		if err != nil {
			return err
		}

		res := tx.Model(&domain.RefreshSession{}).
			Where("id = ? AND revoked = ?", current.ID, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConflict
		}

		if err := tx.Create(successor).Error; err != nil {
			return err
		}
		next = successor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteExpired removes sessions that expired before cutoff and revoked sessions
// created before cutoff. It returns the number of rows deleted.
func (r *RefreshSessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked = ? AND created_at < ?)", cutoff, true, cutoff).
		Delete(&domain.RefreshSession{})
	return res.RowsAffected, res.Error
}

func lockAccount(tx *gorm.DB, accountID int64) error {
	var owner domain.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&owner, accountID).Error
	return translateNotFound(err)
}
