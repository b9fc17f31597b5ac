// Package config loads eventgate's settings from defaults, an optional YAML
// file, environment variables and command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jmcleod/eventgate/gate"
)

// EnvProduction is the env value that turns on enforcement and Secure
// cookies.
const EnvProduction = "production"

// Config is the complete eventgate configuration.
type Config struct {
	Env        string `koanf:"env"`
	ForceAuth  bool   `koanf:"force_auth"`
	Secret     string `koanf:"secret"`
	SecretFile string `koanf:"secret_file"`

	Gate    GateConfig    `koanf:"gate"`
	Server  ServerConfig  `koanf:"server"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Mint    MintConfig    `koanf:"mint"`
	Ledger  LedgerConfig  `koanf:"ledger"`
}

type GateConfig struct {
	QueryParam     string   `koanf:"query_param"`
	CookieName     string   `koanf:"cookie_name"`
	DenialPath     string   `koanf:"denial_path"`
	ExemptPrefixes []string `koanf:"exempt_prefixes"`
	SameSite       string   `koanf:"same_site"`
}

type ServerConfig struct {
	Addr     string `koanf:"addr"`
	Upstream string `koanf:"upstream"`
	TLSCert  string `koanf:"tls_cert"`
	TLSKey   string `koanf:"tls_key"`
}

// MetricsConfig configures the separate metrics listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MintConfig holds defaults for minted links.
type MintConfig struct {
	BaseURL string        `koanf:"base_url"`
	TTL     time.Duration `koanf:"ttl"`
}

// LedgerConfig locates the issuance ledger. An empty Path keeps the
// ledger in memory for the lifetime of the command.
type LedgerConfig struct {
	Path string `koanf:"path"`
}

func defaults() map[string]any {
	return map[string]any{
		"env":                  "development",
		"force_auth":           false,
		"gate.query_param":     gate.DefaultQueryParam,
		"gate.cookie_name":     gate.DefaultCookieName,
		"gate.denial_path":     gate.DefaultDenialPath,
		"gate.exempt_prefixes": slices.Clone(gate.DefaultExemptPrefixes),
		"gate.same_site":       "lax",
		"server.addr":          ":8080",
		"metrics.addr":         "127.0.0.1:9090",
		"log.level":            "info",
		"log.format":           "json",
		"mint.base_url":        "http://localhost:8080/",
		"mint.ttl":             "1h",
	}
}

// Production reports whether env is production.
func (c *Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvProduction)
}

// Enforce reports whether the gate checks tokens: always in production,
// elsewhere only with force_auth.
func (c *Config) Enforce() bool {
	return c.Production() || c.ForceAuth
}

// TLS reports whether the server should terminate TLS itself.
func (c *Config) TLS() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Gate.QueryParam) == "" {
		errs = append(errs, errors.New("gate.query_param must not be empty"))
	}
	if strings.TrimSpace(c.Gate.CookieName) == "" {
		errs = append(errs, errors.New("gate.cookie_name must not be empty"))
	}
	if !strings.HasPrefix(c.Gate.DenialPath, "/") {
		errs = append(errs, fmt.Errorf("gate.denial_path %q must be absolute", c.Gate.DenialPath))
	}
	if _, err := gate.ParseSameSite(c.Gate.SameSite); err != nil {
		errs = append(errs, fmt.Errorf("gate.same_site: %w", err))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	if c.Server.Upstream != "" {
		if u, err := url.Parse(c.Server.Upstream); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.upstream %q must be an absolute URL", c.Server.Upstream))
		}
	}
	if c.Mint.TTL < 0 {
		errs = append(errs, errors.New("mint.ttl must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("unsupported log.format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// EngineConfig builds the gate configuration around key. key is not copied.
func (c *Config) EngineConfig(key []byte) (gate.Config, error) {
	sameSite, err := gate.ParseSameSite(c.Gate.SameSite)
	if err != nil {
		return gate.Config{}, err
	}
	return gate.Config{
		Enforce:        c.Enforce(),
		Secret:         key,
		QueryParam:     c.Gate.QueryParam,
		CookieName:     c.Gate.CookieName,
		DenialPath:     c.Gate.DenialPath,
		ExemptPrefixes: c.Gate.ExemptPrefixes,
		SameSite:       sameSite,
		SecureCookie:   c.Production(),
	}, nil
}
