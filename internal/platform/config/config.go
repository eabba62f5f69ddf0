// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// BanPolicy controls whether banning an issuer retroactively hides the
// tokens it already issued or only blocks future issuance.
type BanPolicy string

const (
	// BanPolicyGrandfather keeps previously issued tokens visible to queries.
	BanPolicyGrandfather BanPolicy = "grandfather"
	// BanPolicyRetroactive hides all tokens of a banned issuer at query time.
	BanPolicyRetroactive BanPolicy = "retroactive"
)

// Config captures server, storage, and protocol configuration.
type Config struct {
	Addr     string
	LogLevel string

	// AdminToken gates the governance surface. Empty disables governance
	// endpoints entirely rather than leaving them open.
	AdminToken string

	// BanPolicy is the registry-wide visibility rule for tokens of banned
	// issuers. It is deployment configuration, not per-token state.
	BanPolicy BanPolicy

	// DefaultClaimTTL is the freshness window for oracle claims when the
	// issuer record does not configure its own.
	DefaultClaimTTL time.Duration

	// MaxBodyBytes limits request body size on all endpoints.
	MaxBodyBytes int64

	// SweepInterval schedules the background sweep of dead tokens.
	// Zero disables the worker; sweeps can still be run via governance.
	SweepInterval time.Duration

	DatabaseURL string
	RedisURL    string

	KafkaBrokers string
	AuditTopic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
// A local .env file is loaded first when present (development convenience).
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{
		Addr:            getEnv("SOULBOUND_ADDR", ":8080"),
		LogLevel:        getEnv("SOULBOUND_LOG_LEVEL", "info"),
		AdminToken:      os.Getenv("SOULBOUND_ADMIN_TOKEN"),
		BanPolicy:       BanPolicyGrandfather,
		DefaultClaimTTL: time.Hour,
		MaxBodyBytes:    64 * 1024,
		DatabaseURL:     os.Getenv("SOULBOUND_DATABASE_URL"),
		RedisURL:        os.Getenv("SOULBOUND_REDIS_URL"),
		KafkaBrokers:    os.Getenv("SOULBOUND_KAFKA_BROKERS"),
		AuditTopic:      getEnv("SOULBOUND_AUDIT_TOPIC", "soulbound.audit"),
	}

	if os.Getenv("SOULBOUND_BAN_POLICY") == string(BanPolicyRetroactive) {
		cfg.BanPolicy = BanPolicyRetroactive
	}
	if raw := os.Getenv("SOULBOUND_CLAIM_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.DefaultClaimTTL = d
		}
	}
	if raw := os.Getenv("SOULBOUND_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}
	if raw := os.Getenv("SOULBOUND_MAX_BODY_BYTES"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
