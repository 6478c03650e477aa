// Package config loads the portal configuration from YAML, an optional
// .env file and PORTAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppCfg struct {
	Env          string        `yaml:"env"`
	Addr         string        `yaml:"addr"`
	BasePath     string        `yaml:"base_path"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type AuthCfg struct {
	SigningKey          string        `yaml:"signing_key"`
	SigningMethod       string        `yaml:"signing_method"`
	Issuer              string        `yaml:"issuer"`
	AccessTokenTTL      time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL     time.Duration `yaml:"refresh_token_ttl"`
	AccessCookieName    string        `yaml:"access_cookie_name"`
	RefreshCookieName   string        `yaml:"refresh_cookie_name"`
	CookieSecure        bool          `yaml:"cookie_secure"`
	AllowDirectIssuance bool          `yaml:"allow_direct_issuance"`
}

type SignupCfg struct {
	PendingTTL     time.Duration `yaml:"pending_ttl"`
	CodeHashCost   int           `yaml:"code_hash_cost"`
	PhoneRegion    string        `yaml:"phone_region"`
	StrictPhone    bool          `yaml:"strict_phone"`
	HashidUserIDs  bool          `yaml:"hashid_user_ids"`
	BeginBurst     int           `yaml:"begin_burst"`
	BeginInterval  time.Duration `yaml:"begin_interval"`
	VerifyBurst    int           `yaml:"verify_burst"`
	VerifyInterval time.Duration `yaml:"verify_interval"`
	SweepSchedule  string        `yaml:"sweep_schedule"`
}

type PersistenceCfg struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
	Debug        bool   `yaml:"debug"`
}

type RedisCfg struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type SMSCfg struct {
	Provider   string `yaml:"provider"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
	Message    string `yaml:"message"`
}

type BreakerCfg struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Config struct {
	App         AppCfg         `yaml:"app"`
	Auth        AuthCfg        `yaml:"auth"`
	Signup      SignupCfg      `yaml:"signup"`
	Persistence PersistenceCfg `yaml:"persistence"`
	Redis       RedisCfg       `yaml:"redis"`
	SMS         SMSCfg         `yaml:"sms"`
	Breaker     BreakerCfg     `yaml:"breaker"`
}

// Default returns a configuration suitable for local development
func Default() *Config {
	return &Config{
		App: AppCfg{
			Env:          "development",
			Addr:         ":8080",
			BasePath:     "/api/v1",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Auth: AuthCfg{
			SigningMethod:     "HS256",
			Issuer:            "portal",
			AccessTokenTTL:    30 * time.Minute,
			RefreshTokenTTL:   30 * 24 * time.Hour,
			AccessCookieName:  "xww-access-cookie",
			RefreshCookieName: "xws-security-cookie",
			CookieSecure:      true,
		},
		Signup: SignupCfg{
			PendingTTL:     10 * time.Minute,
			PhoneRegion:    "US",
			StrictPhone:    true,
			BeginBurst:     3,
			BeginInterval:  time.Minute,
			VerifyBurst:    5,
			VerifyInterval: time.Minute,
			SweepSchedule:  "@every 5m",
		},
		Persistence: PersistenceCfg{
			Driver:       "sqlite",
			DSN:          "file:portal.db?cache=shared",
			MaxOpenConns: 1,
			AutoMigrate:  true,
		},
		SMS: SMSCfg{
			Provider: "log",
		},
		Breaker: BreakerCfg{
			Enabled:     true,
			MaxFailures: 5,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(env string, apply func(string)) {
		if v := os.Getenv(env); v != "" {
			apply(v)
		}
	}
	duration := func(dst *time.Duration) func(string) {
		return func(v string) {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	boolean := func(dst *bool) func(string) {
		return func(v string) {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	integer := func(dst *int) func(string) {
		return func(v string) {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	override("PORTAL_ENV", func(v string) { cfg.App.Env = v })
	override("PORTAL_ADDR", func(v string) { cfg.App.Addr = v })
	override("PORTAL_SIGNING_KEY", func(v string) { cfg.Auth.SigningKey = v })
	override("PORTAL_SIGNING_METHOD", func(v string) { cfg.Auth.SigningMethod = v })
	override("PORTAL_ISSUER", func(v string) { cfg.Auth.Issuer = v })
	override("PORTAL_ACCESS_TOKEN_TTL", duration(&cfg.Auth.AccessTokenTTL))
	override("PORTAL_REFRESH_TOKEN_TTL", duration(&cfg.Auth.RefreshTokenTTL))
	override("PORTAL_COOKIE_SECURE", boolean(&cfg.Auth.CookieSecure))
	override("PORTAL_ALLOW_DIRECT_ISSUANCE", boolean(&cfg.Auth.AllowDirectIssuance))
	override("PORTAL_PENDING_TTL", duration(&cfg.Signup.PendingTTL))
	override("PORTAL_STRICT_PHONE", boolean(&cfg.Signup.StrictPhone))
	override("PORTAL_CODE_HASH_COST", integer(&cfg.Signup.CodeHashCost))
	override("PORTAL_DB_DRIVER", func(v string) { cfg.Persistence.Driver = v })
	override("PORTAL_DB_DSN", func(v string) { cfg.Persistence.DSN = v })
	override("PORTAL_REDIS_ADDR", func(v string) {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	})
	override("PORTAL_REDIS_PASSWORD", func(v string) { cfg.Redis.Password = v })
	override("PORTAL_SMS_PROVIDER", func(v string) { cfg.SMS.Provider = v })
	override("PORTAL_TWILIO_ACCOUNT_SID", func(v string) { cfg.SMS.AccountSID = v })
	override("PORTAL_TWILIO_AUTH_TOKEN", func(v string) { cfg.SMS.AuthToken = v })
	override("PORTAL_TWILIO_FROM", func(v string) { cfg.SMS.From = v })
}

// Validate checks required values and known enumerations
func (c *Config) Validate() error {
	var errs []error

	if len(c.Auth.SigningKey) < 32 {
		errs = append(errs, errors.New("auth.signing_key must be at least 32 bytes (PORTAL_SIGNING_KEY)"))
	}
	switch c.Auth.SigningMethod {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("auth.signing_method %q is not supported", c.Auth.SigningMethod))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("auth.refresh_token_ttl must exceed a positive auth.access_token_ttl"))
	}
	switch c.Persistence.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("persistence.driver %q is not supported", c.Persistence.Driver))
	}
	if c.Persistence.DSN == "" {
		errs = append(errs, errors.New("persistence.dsn is required"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	switch c.SMS.Provider {
	case "", "log":
	case "twilio":
		if c.SMS.AccountSID == "" || c.SMS.AuthToken == "" || c.SMS.From == "" {
			errs = append(errs, errors.New("sms twilio provider requires account_sid, auth_token and from"))
		}
	default:
		errs = append(errs, fmt.Errorf("sms.provider %q is not supported", c.SMS.Provider))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports a development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "" || c.App.Env == "development"
}
