// Package config centralizes runtime configuration. Components never
// read the environment themselves; main parses one Config and passes
// explicit values to each constructor.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is parsed from TASKLANE_* environment variables.
type Config struct {
	Addr     string `env:"TASKLANE_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"TASKLANE_GRPC_ADDR" envDefault:":8081"`

	DatabaseDSN string `env:"TASKLANE_PG_DSN"`
	RedisURL    string `env:"TASKLANE_REDIS_URL"`

	// JWTSecret signs access tokens. Rotating it invalidates every
	// outstanding access token at once; refresh tokens survive.
	JWTSecret string `env:"TASKLANE_JWT_SECRET,required"`
	JWTIssuer string `env:"TASKLANE_JWT_ISSUER" envDefault:"tasklane"`

	AccessTTL  time.Duration `env:"TASKLANE_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"TASKLANE_REFRESH_TTL" envDefault:"168h"`
	OTPTTL     time.Duration `env:"TASKLANE_OTP_TTL" envDefault:"10m"`

	LoginRateLimit  int64         `env:"TASKLANE_LOGIN_RATE_LIMIT" envDefault:"5"`
	LoginRateWindow time.Duration `env:"TASKLANE_LOGIN_RATE_WINDOW" envDefault:"300s"`

	HTTPRateBurst  int `env:"TASKLANE_HTTP_RATE_BURST" envDefault:"50"`
	HTTPRatePerSec int `env:"TASKLANE_HTTP_RATE_PER_SEC" envDefault:"25"`

	GoogleClientID string `env:"TASKLANE_GOOGLE_CLIENT_ID"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
