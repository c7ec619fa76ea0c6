package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
)

type MockAPIConfig struct {
	ListenAddr string
	LogLevel   string

	DatabaseURL string
	SQLitePath  string

	JWTSecret        string
	JWTRefreshSecret string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	Seed bool

	// AuthRateLimit is the number of POST /auth calls per AuthRateWindow a
	// client IP may make; zero disables the limiter.
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

func LoadMockAPI() *MockAPIConfig {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment variables", err)
	}

	cfg := &MockAPIConfig{
		ListenAddr:       EnvDefault("MOCKAPI_ADDR", ":8060"),
		LogLevel:         EnvDefault("LOG_LEVEL", "info"),
		DatabaseURL:      EnvDefault("DATABASE_URL", ""),
		SQLitePath:       EnvDefault("SQLITE_PATH", "file::memory:?cache=shared"),
		JWTSecret:        EnvDefault("JWT_SECRET", ""),
		JWTRefreshSecret: EnvDefault("JWT_REFRESH_SECRET", ""),
		AccessTTL:        EnvDurationDefault("ACCESS_TTL", 15*time.Minute),
		RefreshTTL:       EnvDurationDefault("REFRESH_TTL", 7*24*time.Hour),
		Seed:             EnvBoolDefault("SEED", true),
		AuthRateLimit:    EnvIntDefault("AUTH_RATE_LIMIT", 10),
		AuthRateWindow:   EnvDurationDefault("AUTH_RATE_WINDOW", time.Minute),
	}

	MustNonEmpty(cfg.JWTSecret, "JWT_SECRET")
	MustNonEmpty(cfg.JWTRefreshSecret, "JWT_REFRESH_SECRET")
	return cfg
}
