package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds everything the process reads from the environment. It is
// loaded once in main; nothing else touches os.Getenv after startup.
type Config struct {
	HTTPPort    string
	DatabaseURL string

	JWTSecret []byte
	TokenTTL  time.Duration

	// SessionEncKey is the AES-256 key protecting session cookies.
	SessionEncKey []byte

	BcryptCost int

	LockoutThreshold int
	LockoutDuration  time.Duration

	SessionTTL    time.Duration
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	SweepGrace    time.Duration

	LoginRatePerMinute int
	LoginRateBurst     int
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getenv("HTTP_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		TokenTTL:           getdur("JWT_EXPIRES_IN", 24*time.Hour),
		BcryptCost:         12,
		LockoutThreshold:   5,
		LockoutDuration:    30 * time.Minute,
		SessionTTL:         8 * time.Hour,
		IdleTimeout:        30 * time.Minute,
		SweepInterval:      getdur("SESSION_SWEEP_INTERVAL", time.Hour),
		SweepGrace:         24 * time.Hour,
		LoginRatePerMinute: 10,
		LoginRateBurst:     5,
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes")
	}
	cfg.JWTSecret = []byte(secret)

	key, err := hex.DecodeString(os.Getenv("SESSION_ENC_KEY"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_ENC_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("SESSION_ENC_KEY must decode to 32 bytes")
	}
	cfg.SessionEncKey = key
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}
