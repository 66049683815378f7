package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                     string        `mapstructure:"PORT"`
	Env                      string        `mapstructure:"ENV"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	DBMaxConns               int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns               int32         `mapstructure:"DB_MIN_CONNS"`
	JWTSecret                string        `mapstructure:"JWT_SECRET"`
	TokenTTL                 time.Duration `mapstructure:"TOKEN_TTL"`
	TokenIssuer              string        `mapstructure:"TOKEN_ISSUER"`
	CORSOrigins              []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS             float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst           int           `mapstructure:"RATE_LIMIT_BURST"`
	ValidityCacheTTL         time.Duration `mapstructure:"AUTH_VALIDITY_CACHE_TTL"`
	AuditQueueSize           int           `mapstructure:"AUDIT_QUEUE_SIZE"`
	AuditWorkers             int           `mapstructure:"AUDIT_WORKERS"`
	ComplianceMaxConcurrency int           `mapstructure:"COMPLIANCE_MAX_CONCURRENCY"`
	CompliancePartial        bool          `mapstructure:"COMPLIANCE_PARTIAL_RESULTS"`
	CompliancePatientTimeout time.Duration `mapstructure:"COMPLIANCE_PATIENT_TIMEOUT"`
	ReminderSweepInterval    time.Duration `mapstructure:"REMINDER_SWEEP_INTERVAL"`
	BcryptCost               int           `mapstructure:"BCRYPT_COST"`
	BodyLimit                string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout           time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var envKeys = []string{
	"PORT",
	"ENV",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"JWT_SECRET",
	"TOKEN_TTL",
	"TOKEN_ISSUER",
	"CORS_ORIGINS",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
	"AUTH_VALIDITY_CACHE_TTL",
	"AUDIT_QUEUE_SIZE",
	"AUDIT_WORKERS",
	"COMPLIANCE_MAX_CONCURRENCY",
	"COMPLIANCE_PARTIAL_RESULTS",
	"COMPLIANCE_PATIENT_TIMEOUT",
	"REMINDER_SWEEP_INTERVAL",
	"BCRYPT_COST",
	"BODY_LIMIT",
	"REQUEST_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TOKEN_TTL", "168h")
	v.SetDefault("TOKEN_ISSUER", "health-portal")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("AUTH_VALIDITY_CACHE_TTL", "1m")
	v.SetDefault("AUDIT_QUEUE_SIZE", 1024)
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("COMPLIANCE_MAX_CONCURRENCY", 8)
	v.SetDefault("COMPLIANCE_PARTIAL_RESULTS", true)
	v.SetDefault("COMPLIANCE_PATIENT_TIMEOUT", "10s")
	v.SetDefault("REMINDER_SWEEP_INTERVAL", "1h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development); console logging enabled.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to serve traffic with.
// A missing JWT_SECRET is fatal: the process must not accept requests it
// cannot authenticate.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production, got %d", len(c.JWTSecret))
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.AuditQueueSize <= 0 {
		return fmt.Errorf("AUDIT_QUEUE_SIZE must be positive, got %d", c.AuditQueueSize)
	}
	if c.AuditWorkers <= 0 {
		return fmt.Errorf("AUDIT_WORKERS must be positive, got %d", c.AuditWorkers)
	}
	if c.ComplianceMaxConcurrency < 0 {
		return fmt.Errorf("COMPLIANCE_MAX_CONCURRENCY must not be negative, got %d", c.ComplianceMaxConcurrency)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	return nil
}
