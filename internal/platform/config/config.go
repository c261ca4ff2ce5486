// Package config resolves all runtime configuration once, in main. Business
// logic never reads the environment; collaborators receive explicit values.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Addr     string `env:"GRADLINK_ADDR" envDefault:":8080"`
	LogLevel string `env:"GRADLINK_LOG_LEVEL" envDefault:"info"`

	// FrontendBaseURL is the SPA origin magic links point at.
	FrontendBaseURL string `env:"GRADLINK_FRONTEND_BASE_URL" envDefault:"http://localhost:3000"`

	// PostgresDSN selects the durable stores. Empty means in-memory.
	PostgresDSN string `env:"GRADLINK_POSTGRES_DSN"`

	// RedisURL enables the partner-domain cache. Empty disables caching.
	RedisURL string `env:"GRADLINK_REDIS_URL"`

	// PartnerAPIURL is the partner-management directory. Empty means the
	// static development set.
	PartnerAPIURL   string        `env:"GRADLINK_PARTNER_API_URL"`
	PartnerCacheTTL time.Duration `env:"GRADLINK_PARTNER_CACHE_TTL" envDefault:"10m"`

	// SESSender enables SES delivery. Empty means no channel: magic links
	// are returned in responses instead of sent.
	SESSender string `env:"GRADLINK_SES_SENDER"`

	// KafkaBrokers enables the audit mirror. Empty disables it.
	KafkaBrokers []string `env:"GRADLINK_KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"GRADLINK_AUDIT_TOPIC" envDefault:"gradlink.handover.audit"`

	// AdminAccountIDs may call the scan and audit-log endpoints.
	AdminAccountIDs []string `env:"GRADLINK_ADMIN_ACCOUNT_IDS" envSeparator:","`

	JWTSigningKey string `env:"GRADLINK_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// IsAdmin reports whether the account may use the admin surface.
func (c Config) IsAdmin(accountID string) bool {
	for _, id := range c.AdminAccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}
