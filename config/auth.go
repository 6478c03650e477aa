package config

import (
	"time"

	auth "github.com/goliatone/go-phone-auth"
)

// AuthConfig adapts AuthCfg to auth.Config
type AuthConfig struct {
	cfg AuthCfg
}

var _ auth.Config = AuthConfig{}

// AuthConfig returns the auth.Config view of c
func (c *Config) AuthConfig() AuthConfig {
	return AuthConfig{cfg: c.Auth}
}

func (a AuthConfig) GetSigningKey() string { return a.cfg.SigningKey }
func (a AuthConfig) GetSigningMethod() string { return a.cfg.SigningMethod }
func (a AuthConfig) GetIssuer() string { return a.cfg.Issuer }
func (a AuthConfig) GetAccessTokenTTL() time.Duration { return a.cfg.AccessTokenTTL }
func (a AuthConfig) GetRefreshTokenTTL() time.Duration { return a.cfg.RefreshTokenTTL }
func (a AuthConfig) GetAccessCookieName() string { return a.cfg.AccessCookieName }
func (a AuthConfig) GetRefreshCookieName() string { return a.cfg.RefreshCookieName }
func (a AuthConfig) GetCookieSecure() bool { return a.cfg.CookieSecure }
func (a AuthConfig) GetAllowDirectIssuance() bool { return a.cfg.AllowDirectIssuance }
