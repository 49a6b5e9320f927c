package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by stores when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned by stores when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a concurrent writer changed the record first.
	ErrConflict = errors.New("concurrent modification")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Account is a shelter back-office login. Email is stored lowercased and is unique.
type Account struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"size:60;not null"`
	FirstName    string    `json:"first_name" gorm:"size:80;not null"`
	LastName     string    `json:"last_name" gorm:"size:80;not null"`
	Phone        string    `json:"phone,omitempty" gorm:"size:32"`
	IsActive     bool      `json:"is_active" gorm:"not null"`
	Role         Role      `json:"role" gorm:"size:32;not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }
