package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"petshelter/internal/config"
	"petshelter/internal/database"
	"petshelter/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.SessionStore == config.SessionStoreRedis {
		log.Println("auth cleanup skipped: redis session keys expire after the retention window")
		return
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-repository.SessionRetention)
	n, err := repository.NewRefreshSessionRepository(db).DeleteExpired(ctx, cutoff)
	if err != nil {
		log.Fatalf("cleanup refresh_sessions failed: %v", err)
	}

	log.Printf("auth cleanup completed: refresh_sessions=%d", n)
}
