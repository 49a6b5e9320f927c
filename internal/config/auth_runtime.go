package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDatabaseURL        = "petshelter.db"
	defaultHTTPAddr           = ":8080"
	defaultJWTAccessTTL       = "15m"
	defaultRefreshTTL         = "168h"
	defaultJWTIssuer          = "petshelter"
	defaultBcryptCost         = "10"
	defaultSessionStore       = SessionStoreSQL
	defaultRedisAddr          = "localhost:6379"
	defaultDenylistSweep      = "1m"
	defaultCookieSecure       = "false"
	defaultCookieSameSite     = "Strict"
	defaultCookiePath         = "/api/auth"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultRefreshTokenPepper = "change-me-refresh-pepper"
	defaultCORSAllowedOrigins = "http://localhost:3000,http://localhost:5173"
)

const (
	SessionStoreSQL   = "sql"
	SessionStoreRedis = "redis"
)

type AuthRuntimeConfig struct {
	AppEnv                string
	DatabaseURL           string
	HTTPAddr              string
	JWTSecret             string
	JWTIssuer             string
	JWTAccessTTL          time.Duration
	RefreshTTL            time.Duration
	RefreshTokenPepper    string
	BcryptCost            int
	SessionStore          string
	RedisAddr             string
	RedisPassword         string
	DenylistSweepInterval time.Duration
	CookieSecure          bool
	CookieSameSite        string
	CookiePath            string
	CORSAllowedOrigins    []string
}

func LoadAuthRuntimeConfig() (*AuthRuntimeConfig, error) {
	cfg := &AuthRuntimeConfig{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.JWTIssuer = strings.TrimSpace(getEnv("JWT_ISSUER", defaultJWTIssuer))
	cfg.RefreshTokenPepper = strings.TrimSpace(getEnv("REFRESH_TOKEN_PEPPER", defaultRefreshTokenPepper))
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", defaultSessionStore)))
	cfg.RedisAddr = strings.TrimSpace(getEnv("REDIS_ADDR", defaultRedisAddr))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}

	cfg.RefreshTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL)
	if err != nil {
		return nil, err
	}

	cfg.DenylistSweepInterval, err = parseDurationEnv("DENYLIST_SWEEP_INTERVAL", defaultDenylistSweep)
	if err != nil {
		return nil, err
	}

	cfg.BcryptCost, err = parseIntEnv("BCRYPT_COST", defaultBcryptCost)
	if err != nil {
		return nil, err
	}

	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite))
	cfg.CookiePath = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))
	cfg.CORSAllowedOrigins = parseListEnv("CORS_ALLOWED_ORIGINS", defaultCORSAllowedOrigins)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("auth config: env=%s session_store=%s access_ttl=%s refresh_ttl=%s cookie_secure=%t cookie_samesite=%s",
		cfg.AppEnv, cfg.SessionStore, cfg.JWTAccessTTL, cfg.RefreshTTL, cfg.CookieSecure, cfg.CookieSameSite)

	return cfg, nil
}

// AccessTTLSeconds is the access-credential lifetime reported to clients as expires_in.
func (c *AuthRuntimeConfig) AccessTTLSeconds() int64 {
	return int64(c.JWTAccessTTL / time.Second)
}

func validateConfig(cfg *AuthRuntimeConfig) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTAccessTTL < time.Second {
		return fmt.Errorf("JWT_ACCESS_TTL must be at least 1s")
	}
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.RefreshTTL < cfg.JWTAccessTTL {
		return fmt.Errorf("REFRESH_TTL must not be shorter than JWT_ACCESS_TTL")
	}
	if cfg.DenylistSweepInterval < 0 {
		return fmt.Errorf("DENYLIST_SWEEP_INTERVAL must be >= 0")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if cfg.SessionStore != SessionStoreSQL && cfg.SessionStore != SessionStoreRedis {
		return fmt.Errorf("SESSION_STORE must be one of: sql, redis")
	}
	if cfg.SessionStore == SessionStoreRedis && cfg.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must be set when SESSION_STORE=redis")
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	sameSite := strings.ToLower(cfg.CookieSameSite)
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.RefreshTokenPepper, defaultRefreshTokenPepper) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_PEPPER must be set and not default")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

// parseListEnv splits a comma-separated variable, dropping blank entries.
func parseListEnv(name, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(name, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
