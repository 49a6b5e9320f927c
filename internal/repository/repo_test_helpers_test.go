package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"petshelter/internal/domain"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:repo_test_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(
		sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err, "failed to open sqlite db")
	require.NoError(t, db.AutoMigrate(&domain.Account{}, &domain.RefreshSession{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// serializeConnections pins the pool to one connection. SQLite ignores row locks, so
// concurrent callers are serialized at the pool the way Postgres serializes them on
// the account row.
func serializeConnections(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
}

func createAccount(t *testing.T, repo *AccountRepository, email string) *domain.Account {
	t.Helper()
	a := &domain.Account{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
		Role:         domain.RoleUser,
	}
	require.NoError(t, repo.Create(context.Background(), a))
	return a
}

func newSession(accountID int64, hash string, expiresAt time.Time) *domain.RefreshSession {
	return &domain.RefreshSession{
		TokenHash: hash,
		AccountID: accountID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}

func activeCount(sessions []domain.RefreshSession) int {
	n := 0
	for _, s := range sessions {
		if !s.Revoked {
			n++
		}
	}
	return n
}
