// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minSessionSecretLen = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Environment     string
	ListenAddr      string
	DBPath          string
	SheetAPIURL     string
	UpstreamTimeout time.Duration
	ServiceCacheTTL time.Duration
	MemberCacheTTL  time.Duration
	SessionSecret   []byte
	AdminEmails     []string
	AllowedDomain   string
	SkipAuth        bool
}

// IsProduction reports whether the server runs with production hardening
// (the auth bypass refused, relaxed settings hidden from /api/v1/config).
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from environment variables and returns a validated Config.
// PASSDIR_SHEET_API_URL and PASSDIR_SESSION_SECRET are required.
// Optional variables with defaults: PASSDIR_ENV (development),
// PASSDIR_LISTEN_ADDR (127.0.0.1:8080), PASSDIR_DB_PATH (passdir.db),
// PASSDIR_UPSTREAM_TIMEOUT (15s), PASSDIR_SERVICE_CACHE_TTL (5m),
// PASSDIR_MEMBER_CACHE_TTL (1m). PASSDIR_SKIP_AUTH is rejected in production.
func Load() (*Config, error) {
	environment := "development"
	if v, ok := os.LookupEnv("PASSDIR_ENV"); ok && v != "" {
		environment = v
	}

	sheetAPIURL := os.Getenv("PASSDIR_SHEET_API_URL")
	if sheetAPIURL == "" {
		return nil, fmt.Errorf("PASSDIR_SHEET_API_URL is required")
	}

	secret := os.Getenv("PASSDIR_SESSION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("PASSDIR_SESSION_SECRET is required")
	}
	if len(secret) < minSessionSecretLen {
		return nil, fmt.Errorf("PASSDIR_SESSION_SECRET must be at least %d bytes, got %d", minSessionSecretLen, len(secret))
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("PASSDIR_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "passdir.db"
	if v, ok := os.LookupEnv("PASSDIR_DB_PATH"); ok {
		dbPath = v
	}

	upstreamTimeout := 15 * time.Second
	if v, ok := os.LookupEnv("PASSDIR_UPSTREAM_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PASSDIR_UPSTREAM_TIMEOUT has invalid duration %q: %w", v, err)
		}
		upstreamTimeout = parsed
	}

	serviceCacheTTL := 5 * time.Minute
	if v, ok := os.LookupEnv("PASSDIR_SERVICE_CACHE_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PASSDIR_SERVICE_CACHE_TTL has invalid duration %q: %w", v, err)
		}
		serviceCacheTTL = parsed
	}

	memberCacheTTL := 1 * time.Minute
	if v, ok := os.LookupEnv("PASSDIR_MEMBER_CACHE_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PASSDIR_MEMBER_CACHE_TTL has invalid duration %q: %w", v, err)
		}
		memberCacheTTL = parsed
	}

	var adminEmails []string
	if v, ok := os.LookupEnv("PASSDIR_ADMIN_EMAILS"); ok && v != "" {
		for _, email := range strings.Split(v, ",") {
			email = strings.ToLower(strings.TrimSpace(email))
			if email != "" {
				adminEmails = append(adminEmails, email)
			}
		}
	}
	if adminEmails == nil {
		adminEmails = []string{}
	}

	allowedDomain := strings.ToLower(strings.TrimSpace(os.Getenv("PASSDIR_ALLOWED_DOMAIN")))

	skipAuth := false
	if v, ok := os.LookupEnv("PASSDIR_SKIP_AUTH"); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("PASSDIR_SKIP_AUTH has invalid boolean %q: %w", v, err)
		}
		skipAuth = parsed
	}
	if skipAuth && environment == "production" {
		return nil, fmt.Errorf("PASSDIR_SKIP_AUTH cannot be enabled when PASSDIR_ENV is production")
	}

	return &Config{
		Environment:     environment,
		ListenAddr:      listenAddr,
		DBPath:          dbPath,
		SheetAPIURL:     sheetAPIURL,
		UpstreamTimeout: upstreamTimeout,
		ServiceCacheTTL: serviceCacheTTL,
		MemberCacheTTL:  memberCacheTTL,
		SessionSecret:   []byte(secret),
		AdminEmails:     adminEmails,
		AllowedDomain:   allowedDomain,
		SkipAuth:        skipAuth,
	}, nil
}
