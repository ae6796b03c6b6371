package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration, loaded from the environment.
// A .env file in the working directory is honored when present.
type Config struct {
	Addr        string // listen address, e.g. ":3000"
	JWTSecret   string // HMAC secret for bearer tokens
	FrontendURL string // allowed CORS origin
	DBPath      string // sqlite database file
	StaticDir   string // directory served at /
}

func Load() (*Config, error) {
	// Best effort: absent .env is fine, env vars win either way.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        getenv("ADDR", ":3000"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		FrontendURL: getenv("FRONTEND_URL", "http://localhost:5173"),
		DBPath:      getenv("DB_PATH", "chat.db"),
		StaticDir:   getenv("STATIC_DIR", "public"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
