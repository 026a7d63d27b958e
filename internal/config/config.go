package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	JWTSecret            string        `mapstructure:"JWT_SECRET"`
	JWTIssuer            string        `mapstructure:"JWT_ISSUER"`
	JWTExpiration        string        `mapstructure:"JWT_EXPIRATION"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	UploadDir            string        `mapstructure:"UPLOAD_DIR"`
	MaxUploadSize        int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	AadhaarVerifyURL     string        `mapstructure:"AADHAAR_VERIFY_URL"`
	AadhaarVerifyTimeout time.Duration `mapstructure:"AADHAAR_VERIFY_TIMEOUT"`
	SMTPHost             string        `mapstructure:"SMTP_HOST"`
	SMTPPort             int           `mapstructure:"SMTP_PORT"`
	SMTPUsername         string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword         string        `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom             string        `mapstructure:"SMTP_FROM"`
	TLSEnabled           bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile          string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile           string        `mapstructure:"TLS_KEY_FILE"`
}

// devJWTSecret is only ever used when ENV=development and JWT_SECRET is unset.
const devJWTSecret = "carelink-development-secret-do-not-use-in-prod"

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"JWT_SECRET", "JWT_ISSUER", "JWT_EXPIRATION", "CORS_ORIGINS",
	"UPLOAD_DIR", "MAX_UPLOAD_SIZE", "AADHAAR_VERIFY_URL", "AADHAAR_VERIFY_TIMEOUT",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("JWT_ISSUER", "carelink")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("MAX_UPLOAD_SIZE", 10*1024*1024)
	v.SetDefault("AADHAAR_VERIFY_TIMEOUT", "5s")
	v.SetDefault("SMTP_PORT", 587)

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

	if cfg.IsDev() && cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET is not set; using the built-in development secret.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		cfg.JWTSecret = devJWTSecret
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

// TokenTTL returns the parsed JWT_EXPIRATION. Validate guarantees it parses.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiration)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// MailEnabled reports whether share notifications should go out over SMTP.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// Validate checks that the configuration is safe to run. Outside development a
// JWT_SECRET of at least 32 bytes is required since it signs every bearer token.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}
	if c.IsProduction() && c.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must not be the development secret in production")
	}

	if d, err := time.ParseDuration(c.JWTExpiration); err != nil {
		return fmt.Errorf("JWT_EXPIRATION is not a valid duration: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("JWT_EXPIRATION must be positive, got %s", d)
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
