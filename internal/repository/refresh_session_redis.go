package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"petshelter/internal/domain"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 8

// RedisRefreshSessionStore keeps refresh sessions in Redis.
//
// Layout, under the key prefix:
//
//	tok:<hash>    JSON session, kept until SessionRetention past its expiry
//	acct:<id>     set of token hashes owned by the account
//	seq           session id counter
//
// Multi-key updates run as WATCH/MULTI transactions on the account set (and the token
// key for rotation), retried on conflict.
type RedisRefreshSessionStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

type redisSession struct {
	ID        int64     `json:"id"`
	TokenHash string    `json:"token_hash"`
	AccountID int64     `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

func NewRedisRefreshSessionStore(rdb *redis.Client, prefix string) *RedisRefreshSessionStore {
	if prefix == "" {
		prefix = "petshelter:rs"
	}
	return &RedisRefreshSessionStore{rdb: rdb, prefix: prefix, retention: SessionRetention, now: time.Now}
}

func (s *RedisRefreshSessionStore) tokenKey(hash string) string {
	return fmt.Sprintf("%s:tok:%s", s.prefix, hash)
}

func (s *RedisRefreshSessionStore) accountKey(accountID int64) string {
	return fmt.Sprintf("%s:acct:%d", s.prefix, accountID)
}

func (s *RedisRefreshSessionStore) seqKey() string {
	return s.prefix + ":seq"
}

func (s *RedisRefreshSessionStore) FindByTokenHash(ctx context.Context, hash string) (*domain.RefreshSession, error) {
	return s.get(ctx, s.rdb, hash)
}

func (s *RedisRefreshSessionStore) ListForAccount(ctx context.Context, accountID int64) ([]domain.RefreshSession, error) {
	hashes, err := s.rdb.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.RefreshSession, 0, len(hashes))
	for _, h := range hashes {
		sess, err := s.get(ctx, s.rdb, h)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, nil
}

func (s *RedisRefreshSessionStore) Revoke(ctx context.Context, sess *domain.RefreshSession) error {
	key := s.tokenKey(sess.TokenHash)
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, sess.TokenHash)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		current.Revoked = true
		payload, err := encodeSession(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttlUntil(current.ExpiresAt))
			return nil
		})
		if err == nil {
			sess.Revoked = true
		}
		return err
	}, key)
}

func (s *RedisRefreshSessionStore) DeleteAllForAccount(ctx context.Context, accountID int64) error {
	acctKey := s.accountKey(accountID)
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		hashes, err := tx.SMembers(ctx, acctKey).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, h := range hashes {
				pipe.Del(ctx, s.tokenKey(h))
			}
			pipe.Del(ctx, acctKey)
			return nil
		})
		return err
	}, acctKey)
}

func (s *RedisRefreshSessionStore) ReplaceForAccount(ctx context.Context, sess *domain.RefreshSession) error {
	if err := s.assignID(ctx, sess); err != nil {
		return err
	}
	payload, err := encodeSession(sess)
	if err != nil {
		return err
	}

	acctKey := s.accountKey(sess.AccountID)
	ttl := s.ttlUntil(sess.ExpiresAt)

	return s.withRetry(ctx, func(tx *redis.Tx) error {
		hashes, err := tx.SMembers(ctx, acctKey).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, h := range hashes {
				pipe.Del(ctx, s.tokenKey(h))
			}
			pipe.Del(ctx, acctKey)
			pipe.Set(ctx, s.tokenKey(sess.TokenHash), payload, ttl)
			pipe.SAdd(ctx, acctKey, sess.TokenHash)
			pipe.Expire(ctx, acctKey, ttl)
			return nil
		})
		return err
	}, acctKey)
}

func (s *RedisRefreshSessionStore) Rotate(ctx context.Context, hash string, fn domain.RotateFunc) (*domain.RefreshSession, error) {
	located, err := s.get(ctx, s.rdb, hash)
	if err != nil {
		return nil, err
	}

	tokKey := s.tokenKey(hash)
	acctKey := s.accountKey(located.AccountID)
	var next *domain.RefreshSession

	err = s.withRetry(ctx, func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, hash)
		if err != nil {
			return err
		}

		successor, err := fn(current)
		if err != nil {
			return err
		}
		if current.Revoked {
			return domain.ErrConflict
		}
		if err := s.assignID(ctx, successor); err != nil {
			return err
		}

		current.Revoked = true
		oldPayload, err := encodeSession(current)
		if err != nil {
			return err
		}
		newPayload, err := encodeSession(successor)
		if err != nil {
			return err
		}
		newTTL := s.ttlUntil(successor.ExpiresAt)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, tokKey, oldPayload, s.ttlUntil(current.ExpiresAt))
			pipe.Set(ctx, s.tokenKey(successor.TokenHash), newPayload, newTTL)
			pipe.SAdd(ctx, acctKey, successor.TokenHash)
			pipe.Expire(ctx, acctKey, newTTL)
			return nil
		})
		if err == nil {
			next = successor
		}
		return err
	}, tokKey, acctKey)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *RedisRefreshSessionStore) withRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return domain.ErrConflict
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisRefreshSessionStore) get(ctx context.Context, c stringGetter, hash string) (*domain.RefreshSession, error) {
	raw, err := c.Get(ctx, s.tokenKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec redisSession
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode refresh session: %w", err)
	}
	return &domain.RefreshSession{
		ID:        rec.ID,
		TokenHash: rec.TokenHash,
		AccountID: rec.AccountID,
		ExpiresAt: rec.ExpiresAt,
		Revoked:   rec.Revoked,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *RedisRefreshSessionStore) assignID(ctx context.Context, sess *domain.RefreshSession) error {
	if sess.ID != 0 {
		return nil
	}
	id, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return err
	}
	sess.ID = id
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	return nil
}

// ttlUntil is the key expiration for a session ending at at: the retention window past
// its expiry, floored at one second.
func (s *RedisRefreshSessionStore) ttlUntil(at time.Time) time.Duration {
	ttl := at.Add(s.retention).Sub(s.now())
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func encodeSession(sess *domain.RefreshSession) ([]byte, error) {
	return json.Marshal(redisSession{
		ID:        sess.ID,
		TokenHash: sess.TokenHash,
		AccountID: sess.AccountID,
		ExpiresAt: sess.ExpiresAt,
		Revoked:   sess.Revoked,
		CreatedAt: sess.CreatedAt,
	})
}
