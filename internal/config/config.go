package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	AuthDevelopment = "development"
	AuthJWT         = "jwt"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	AuthMode        string        `mapstructure:"AUTH_MODE"`
	Store           string        `mapstructure:"STORE"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir   string        `mapstructure:"MIGRATIONS_DIR"`
	AuthIssuer      string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey  string        `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultFacility string        `mapstructure:"DEFAULT_FACILITY"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	ApproverRoles   []string      `mapstructure:"APPROVER_ROLES"`
	Timezone        string        `mapstructure:"TIMEZONE"`
	BodyLimit       string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MailFrom        string        `mapstructure:"MAIL_FROM"`
	SMTPAddr        string        `mapstructure:"SMTP_ADDR"`
	SMTPUsername    string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword    string        `mapstructure:"SMTP_PASSWORD"`
	SurveyBaseURL   string        `mapstructure:"SURVEY_BASE_URL"`
	SurveyTTL       time.Duration `mapstructure:"SURVEY_TTL"`
	TLSEnabled      bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile     string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile      string        `mapstructure:"TLS_KEY_FILE"`
}

var defaults = map[string]interface{}{
	"PORT":             "8000",
	"ENV":              "development",
	"LOG_LEVEL":        "info",
	"AUTH_MODE":        "",
	"STORE":            StorePostgres,
	"DB_MAX_CONNS":     20,
	"DB_MIN_CONNS":     5,
	"MIGRATIONS_DIR":   "migrations",
	"DEFAULT_FACILITY": "default",
	"CORS_ORIGINS":     "http://localhost:3000",
	"APPROVER_ROLES":   "admin,physician",
	"TIMEZONE":         "UTC",
	"BODY_LIMIT":       "1M",
	"REQUEST_TIMEOUT":  "30s",
	"MAIL_FROM":        "noreply@healthcheck.local",
	"SURVEY_BASE_URL":  "http://localhost:3000/surveys",
	"SURVEY_TTL":       "336h",
}

var bound = []string{
	"DATABASE_URL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"SMTP_ADDR", "SMTP_USERNAME", "SMTP_PASSWORD", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, d := range defaults {
		v.SetDefault(k, d)
		_ = v.BindEnv(k)
	}
	for _, k := range bound {
		_ = v.BindEnv(k)
	}
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.ApproverRoles = splitList(v.GetString("APPROVER_ROLES"))
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if cfg.Store != StoreMemory && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required unless STORE=%s", StoreMemory)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ResolvedAuthMode returns AUTH_MODE, or infers it: development in ENV=development,
// jwt otherwise.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return AuthDevelopment
	}
	return AuthJWT
}

// Location loads TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) Validate() error {
	switch c.ResolvedAuthMode() {
	case AuthDevelopment:
		if c.Env == "production" {
			return fmt.Errorf("AUTH_MODE=%s is not allowed in production", AuthDevelopment)
		}
	case AuthJWT:
		if c.AuthSigningKey == "" && c.AuthJWKSURL == "" && c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_MODE=jwt needs AUTH_JWKS_URL, AUTH_ISSUER or AUTH_SIGNING_KEY")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthDevelopment, AuthJWT, c.AuthMode)
	}

	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	if len(c.ApproverRoles) == 0 {
		return fmt.Errorf("APPROVER_ROLES must name at least one role")
	}
	if c.SurveyTTL <= 0 {
		return fmt.Errorf("SURVEY_TTL must be positive")
	}
	if c.TLSEnabled && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE are required when TLS_ENABLED is true")
	}
	return nil
}
