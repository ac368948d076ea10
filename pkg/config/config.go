// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Downstream services
	AssetURL      string
	PermissionURL string
	AnalysisURL   string

	// Identity provider (management API, client_credentials grant)
	IdentityDomain       string
	IdentityClientID     string
	IdentityClientSecret string
	IdentityAudience     string

	// Inbound JWT validation
	Issuer   string
	Audience string
	JWKSURL  string

	// Timeout applied to every outbound call this service makes.
	OutboundTimeout time.Duration

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	// Optional YAML file with default formatting/linting rules.
	DefaultRulesPath string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                  env("PRINTHUB_ENV", "dev"),
		HTTPAddr:             env("PRINTHUB_HTTP_ADDR", ":8080"),
		AssetURL:             env("ASSET_URL", "http://localhost:8081"),
		PermissionURL:        env("PERMISSION_URL", "http://localhost:8082"),
		AnalysisURL:          env("ANALYSIS_URL", "http://localhost:8083"),
		IdentityDomain:       env("IDENTITY_DOMAIN", ""),
		IdentityClientID:     env("IDENTITY_CLIENT_ID", ""),
		IdentityClientSecret: env("IDENTITY_CLIENT_SECRET", ""),
		IdentityAudience:     env("IDENTITY_AUDIENCE", ""),
		Issuer:               env("OIDC_ISSUER", ""),
		Audience:             env("OIDC_AUDIENCE", "printhub-api"),
		JWKSURL:              env("JWKS_URL", ""),
		OutboundTimeout:      envDur("OUTBOUND_TIMEOUT_SEC", 10) * time.Second,
		RedisURL:             env("REDIS_URL", ""),
		DatabaseURL:          env("DATABASE_URL", ""),
		DefaultRulesPath:     env("DEFAULT_RULES_PATH", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — snippet metadata will not persist")
	}
	if cfg.IdentityDomain == "" || cfg.IdentityClientID == "" || cfg.IdentityClientSecret == "" {
		log.Println("[WARN] identity management credentials incomplete — user directory disabled")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		if i > 0 {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
