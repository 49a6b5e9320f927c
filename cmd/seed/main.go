package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"petshelter/internal/config"
	"petshelter/internal/database"
	"petshelter/internal/domain"
	"petshelter/internal/pkg/password"
	"petshelter/internal/repository"
)

const defaultAdminEmail = "admin@petshelter.local"

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	email := strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL"))
	if email == "" {
		email = defaultAdminEmail
	}
	plain := os.Getenv("SEED_ADMIN_PASSWORD")
	if err := password.CheckStrength(plain); err != nil {
		log.Fatalf("SEED_ADMIN_PASSWORD rejected: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	ctx := context.Background()
	accounts := repository.NewAccountRepository(db)

	exists, err := accounts.ExistsByEmail(ctx, email)
	if err != nil {
		log.Fatalf("lookup %s: %v", email, err)
	}
	if exists {
		log.Printf("Admin %s already exists, nothing to do", email)
		return
	}

	hash, err := password.NewBcryptHasher(cfg.BcryptCost).Hash(plain)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	admin := &domain.Account{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Shelter",
		LastName:     "Admin",
		IsActive:     true,
		Role:         domain.RoleAdmin,
	}
	if err := accounts.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			log.Printf("Admin %s already exists, nothing to do", email)
			return
		}
		log.Fatalf("create admin: %v", err)
	}

	log.Printf("Admin created: %s (id=%d)", admin.Email, admin.ID)
}
