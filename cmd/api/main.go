package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"petshelter/internal/config"
	"petshelter/internal/database"
	"petshelter/internal/middleware"
	"petshelter/internal/modules/auth"
	"petshelter/internal/pkg/denylist"
	jwtsvc "petshelter/internal/pkg/jwt"
	"petshelter/internal/pkg/password"
	"petshelter/internal/repository"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded, using process environment")
	}

	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	accountRepo := repository.NewAccountRepository(db)
	sessions, closeSessions, err := newSessionStore(ctx, cfg, repository.NewRefreshSessionRepository(db))
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	defer closeSessions()

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL)
	hasher := password.NewBcryptHasher(cfg.BcryptCost)

	dl := denylist.New()
	if cfg.DenylistSweepInterval > 0 {
		go dl.Run(ctx, cfg.DenylistSweepInterval)
	}

	authService := auth.NewService(
		accountRepo,
		sessions,
		j,
		hasher,
		dl,
		cfg.JWTAccessTTL,
		cfg.RefreshTTL,
		cfg.RefreshTokenPepper,
	)
	authHandler := auth.NewHandler(authService, cfg.CookieSecure, cfg.CookieSameSite, cfg.CookiePath)

	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), middleware.ErrorLogger(), middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// public
		authHandler.RegisterPublicRoutes(api)

		protected := api.Group("")
		protected.Use(middleware.JWTAuth(j, authService))
		{
			authHandler.RegisterProtectedRoutes(protected)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.JWTAuth(j, authService), middleware.AdminOnly())
		{
			authHandler.RegisterAdminRoutes(admin)
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server_start addr=%s session_store=%s", cfg.HTTPAddr, cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("server_stop reason=signal")
	case err := <-errCh:
		log.Fatalf("server_fail error=%q", err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server_shutdown_fail error=%q", err.Error())
	}
	log.Println("server_stopped")
}

// newSessionStore picks the refresh-session backend named by SESSION_STORE.
func newSessionStore(ctx context.Context, cfg *config.AuthRuntimeConfig, sqlStore *repository.RefreshSessionRepository) (auth.SessionStore, func(), error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return sqlStore, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return repository.NewRedisRefreshSessionStore(rdb, ""), func() { _ = rdb.Close() }, nil
}
