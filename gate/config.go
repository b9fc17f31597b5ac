package gate

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

const (
	DefaultQueryParam = "t"
	DefaultCookieName = "event_auth"
	DefaultDenialPath = "/access-denied"
)

// DefaultExemptPrefixes stay reachable without a token.
var DefaultExemptPrefixes = []string{
	DefaultDenialPath,
	"/healthz",
	"/favicon.ico",
	"/assets/",
}

// Config is the process-wide gate configuration. Build it once at startup
// and do not mutate it afterwards.
type Config struct {
	// Enforce turns the gate on. When false every request is allowed.
	Enforce bool
	// Secret is the shared HMAC key. An empty secret denies every token.
	Secret []byte
	// QueryParam names the query parameter carrying a link token.
	QueryParam string
	// CookieName names the session cookie.
	CookieName string
	// DenialPath is where denied requests are redirected. It is always
	// exempt from gating.
	DenialPath string
	// ExemptPrefixes lists path prefixes served without a token.
	ExemptPrefixes []string
	// SameSite is the session cookie SameSite mode, lax or strict.
	SameSite http.SameSite
	// SecureCookie marks the session cookie Secure. On in production.
	SecureCookie bool
}

// DefaultConfig returns an enforcing configuration without a secret.
func DefaultConfig() Config {
	return Config{
		Enforce:        true,
		QueryParam:     DefaultQueryParam,
		CookieName:     DefaultCookieName,
		DenialPath:     DefaultDenialPath,
		ExemptPrefixes: slices.Clone(DefaultExemptPrefixes),
		SameSite:       http.SameSiteLaxMode,
	}
}

// normalized fills unset fields with defaults and makes sure the denial
// path is exempt, which keeps denied visitors out of a redirect loop.
func (c Config) normalized() Config {
	if c.QueryParam == "" {
		c.QueryParam = DefaultQueryParam
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.DenialPath == "" {
		c.DenialPath = DefaultDenialPath
	}
	if c.SameSite == 0 || c.SameSite == http.SameSiteDefaultMode {
		c.SameSite = http.SameSiteLaxMode
	}
	c.ExemptPrefixes = slices.Clone(c.ExemptPrefixes)
	if !slices.Contains(c.ExemptPrefixes, c.DenialPath) {
		c.ExemptPrefixes = append(c.ExemptPrefixes, c.DenialPath)
	}
	return c
}

// Validate checks the fields that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.DenialPath, "/") {
		errs = append(errs, fmt.Errorf("denial path %q must be absolute", c.DenialPath))
	}
	for _, p := range c.ExemptPrefixes {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("exempt prefix %q must start with /", p))
		}
	}
	switch c.SameSite {
	case http.SameSiteLaxMode, http.SameSiteStrictMode:
	default:
		errs = append(errs, errors.New("same-site mode must be lax or strict"))
	}
	if strings.ContainsAny(c.CookieName, " \t;=,") {
		errs = append(errs, fmt.Errorf("invalid cookie name %q", c.CookieName))
	}
	return errors.Join(errs...)
}

// IsExempt reports whether path matches an exempt prefix.
func (c Config) IsExempt(path string) bool {
	for _, p := range c.ExemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// ParseSameSite maps "lax" and "strict" to their http.SameSite values.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	default:
		return 0, fmt.Errorf("unsupported same-site mode %q", s)
	}
}
