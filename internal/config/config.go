package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Line policies for purchase creation.
const (
	LinePolicyLenient = "lenient"
	LinePolicyStrict  = "strict"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	TokenTTL           time.Duration `mapstructure:"TOKEN_TTL"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	PurchaseTxTimeout  time.Duration `mapstructure:"PURCHASE_TX_TIMEOUT"`
	PurchaseLinePolicy string        `mapstructure:"PURCHASE_LINE_POLICY"`
	BodyLimit          string        `mapstructure:"BODY_LIMIT"`
	MigrationsDir      string        `mapstructure:"MIGRATIONS_DIR"`
}

var envKeys = []string{
	"PORT",
	"ENV",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"CORS_ORIGINS",
	"AUTH_SIGNING_KEY",
	"TOKEN_TTL",
	"REQUEST_TIMEOUT",
	"PURCHASE_TX_TIMEOUT",
	"PURCHASE_LINE_POLICY",
	"BODY_LIMIT",
	"MIGRATIONS_DIR",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "4000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TOKEN_TTL", "12h")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("PURCHASE_TX_TIMEOUT", "10s")
	v.SetDefault("PURCHASE_LINE_POLICY", LinePolicyLenient)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")

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

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: requests without a bearer token get admin access.")
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

// StrictPurchaseLines reports whether invalid purchase lines reject the
// whole purchase instead of being skipped.
func (c *Config) StrictPurchaseLines() bool {
	return c.PurchaseLinePolicy == LinePolicyStrict
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key of at least 32 bytes is required so issued tokens can be
// verified across restarts.
func (c *Config) Validate() error {
	if c.PurchaseLinePolicy != LinePolicyLenient && c.PurchaseLinePolicy != LinePolicyStrict {
		return fmt.Errorf("PURCHASE_LINE_POLICY must be %q or %q, got %q",
			LinePolicyLenient, LinePolicyStrict, c.PurchaseLinePolicy)
	}
	if !c.IsDev() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters when ENV=%q", c.Env)
	}
	if c.RequestTimeout < 0 || c.PurchaseTxTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
