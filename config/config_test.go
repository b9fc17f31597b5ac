package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/eventgate/gate"
)

// clearLegacyEnv keeps variables from the host out of the test.
func clearLegacyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"EVENT_TOKEN_SECRET", "NODE_ENV", "BASE_URL", "HOURS"} {
		t.Setenv(k, "")
	}
	t.Setenv("FORCE_AUTH", "0")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	clearLegacyEnv(t)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.Enforce())
	assert.Equal(t, gate.DefaultQueryParam, cfg.Gate.QueryParam)
	assert.Equal(t, gate.DefaultCookieName, cfg.Gate.CookieName)
	assert.Equal(t, gate.DefaultDenialPath, cfg.Gate.DenialPath)
	assert.Equal(t, gate.DefaultExemptPrefixes, cfg.Gate.ExemptPrefixes)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Mint.TTL)
	assert.Empty(t, cfg.Secret)
}

func TestLoadPrecedence(t *testing.T) {
	clearLegacyEnv(t)
	path := writeFile(t, "eventgate.yaml", `
env: production
gate:
  cookie_name: from_file
  query_param: pass
server:
  addr: ":7000"
log:
  level: debug
`)
	t.Setenv("EVENTGATE_GATE__COOKIE_NAME", "from_env")
	t.Setenv("EVENTGATE_SERVER__ADDR", ":7001")

	cfg, err := NewLoader(
		WithConfigFile(path),
		WithFlags(map[string]any{"server.addr": ":7002"}),
	).Load()
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, "pass", cfg.Gate.QueryParam, "file overrides default")
	assert.Equal(t, "from_env", cfg.Gate.CookieName, "env overrides file")
	assert.Equal(t, ":7002", cfg.Server.Addr, "flag overrides env")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvNestingAndLists(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("EVENTGATE_FORCE_AUTH", "true")
	t.Setenv("EVENTGATE_SECRET_FILE", "/run/secrets/gate")
	t.Setenv("EVENTGATE_GATE__EXEMPT_PREFIXES", "/public/,/robots.txt")
	t.Setenv("EVENTGATE_MINT__TTL", "36h")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.True(t, cfg.ForceAuth)
	assert.True(t, cfg.Enforce())
	assert.Equal(t, "/run/secrets/gate", cfg.SecretFile)
	assert.Equal(t, []string{"/public/", "/robots.txt"}, cfg.Gate.ExemptPrefixes)
	assert.Equal(t, 36*time.Hour, cfg.Mint.TTL)
}

func TestLoadLegacyVariables(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("EVENT_TOKEN_SECRET", "legacy")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("BASE_URL", "https://example.org/")
	t.Setenv("HOURS", "2.5")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Secret)
	assert.True(t, cfg.Production())
	assert.Equal(t, "https://example.org/", cfg.Mint.BaseURL)
	assert.Equal(t, 150*time.Minute, cfg.Mint.TTL)

	t.Setenv("EVENTGATE_SECRET", "modern")
	cfg, err = NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "modern", cfg.Secret, "prefixed variables win over legacy ones")
}

func TestLoadLegacyForceAuthOnlyEnables(t *testing.T) {
	clearLegacyEnv(t)
	path := writeFile(t, "eventgate.yaml", "force_auth: true\n")

	cfg, err := NewLoader(WithConfigFile(path)).Load()
	require.NoError(t, err)
	assert.True(t, cfg.ForceAuth, "FORCE_AUTH=0 leaves the file value alone")

	t.Setenv("FORCE_AUTH", "1")
	cfg, err = NewLoader().Load()
	require.NoError(t, err)
	assert.True(t, cfg.ForceAuth)
}

func TestLoadListsFromFileAndEnv(t *testing.T) {
	clearLegacyEnv(t)
	path := writeFile(t, "eventgate.yaml", `
gate:
  exempt_prefixes:
    - /a/
    - /b/
`)

	cfg, err := NewLoader(WithConfigFile(path)).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/", "/b/"}, cfg.Gate.ExemptPrefixes)

	t.Setenv("EVENTGATE_GATE__EXEMPT_PREFIXES", "/robots.txt")
	cfg, err = NewLoader(WithConfigFile(path)).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"/robots.txt"}, cfg.Gate.ExemptPrefixes)
}

func TestLegacyEnv(t *testing.T) {
	lookup := func(vals map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := vals[k]
			return v, ok
		}
	}

	m := legacyEnv(lookup(map[string]string{"FORCE_AUTH": "1", "HOURS": "abc"}))
	assert.Equal(t, map[string]any{"force_auth": true}, m)

	m = legacyEnv(lookup(map[string]string{"FORCE_AUTH": "true", "HOURS": "-1"}))
	assert.Empty(t, m)

	m = legacyEnv(lookup(map[string]string{"FORCE_AUTH": "0"}))
	assert.Empty(t, m)

	assert.Empty(t, legacyEnv(lookup(nil)))
}

func TestLoadMissingFile(t *testing.T) {
	clearLegacyEnv(t)
	_, err := NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))).Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("EVENTGATE_GATE__SAME_SITE", "none")
	t.Setenv("EVENTGATE_GATE__DENIAL_PATH", "denied")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate.same_site")
	assert.Contains(t, err.Error(), "gate.denial_path")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Gate: GateConfig{
			QueryParam: "t",
			CookieName: "c",
			DenialPath: "/denied",
		}}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Server.TLSCert = "cert.pem"
	assert.ErrorContains(t, cfg.Validate(), "tls_key")

	cfg = base()
	cfg.Server.Upstream = "localhost:3000"
	assert.ErrorContains(t, cfg.Validate(), "upstream")

	cfg = base()
	cfg.Log.Format = "xml"
	assert.ErrorContains(t, cfg.Validate(), "log.format")

	cfg = base()
	cfg.Gate.CookieName = " "
	assert.ErrorContains(t, cfg.Validate(), "cookie_name")
}

func TestEngineConfig(t *testing.T) {
	cfg := Config{
		Env: "Production",
		Gate: GateConfig{
			QueryParam:     "t",
			CookieName:     "event_auth",
			DenialPath:     "/access-denied",
			ExemptPrefixes: []string{"/assets/"},
			SameSite:       "strict",
		},
	}
	key := []byte("k")

	gc, err := cfg.EngineConfig(key)
	require.NoError(t, err)
	assert.True(t, gc.Enforce)
	assert.True(t, gc.SecureCookie)
	assert.Equal(t, http.SameSiteStrictMode, gc.SameSite)
	assert.Equal(t, key, gc.Secret)
	assert.Equal(t, []string{"/assets/"}, gc.ExemptPrefixes)

	cfg.Env = "staging"
	gc, err = cfg.EngineConfig(key)
	require.NoError(t, err)
	assert.False(t, gc.Enforce)
	assert.False(t, gc.SecureCookie)

	cfg.ForceAuth = true
	gc, err = cfg.EngineConfig(key)
	require.NoError(t, err)
	assert.True(t, gc.Enforce)
	assert.False(t, gc.SecureCookie)
}

func TestLoadSecret(t *testing.T) {
	cfg := Config{Secret: "  topsecret \n"}
	s, err := cfg.LoadSecret()
	require.NoError(t, err)
	defer s.Destroy()
	assert.Equal(t, []byte("topsecret"), s.Bytes())
	assert.Empty(t, cfg.Secret)

	path := writeFile(t, "secret", "fromfile\n")
	cfg = Config{Secret: "ignored", SecretFile: path}
	s2, err := cfg.LoadSecret()
	require.NoError(t, err)
	defer s2.Destroy()
	assert.Equal(t, []byte("fromfile"), s2.Bytes())

	cfg = Config{}
	s3, err := cfg.LoadSecret()
	require.NoError(t, err)
	assert.True(t, s3.Empty())
}

// unsetForTest removes k for the duration of the test.
func unsetForTest(t *testing.T, k string) {
	t.Helper()
	t.Setenv(k, "")
	require.NoError(t, os.Unsetenv(k))
}

func TestLoadDotEnv(t *testing.T) {
	clearLegacyEnv(t)
	unsetForTest(t, "EVENTGATE_LOG__FORMAT")
	unsetForTest(t, "EVENTGATE_SERVER__ADDR")
	t.Setenv("EVENTGATE_LOG__LEVEL", "warn")

	path := writeFile(t, ".env", `
# written by the deploy script
EVENTGATE_LOG__FORMAT=text
EVENTGATE_LOG__LEVEL=debug
EVENTGATE_SERVER__ADDR=":9999"
`)

	cfg, err := NewLoader(WithDotEnv(path)).Load()
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level, "real environment wins over the file")
}

func TestLoadDotEnvMissing(t *testing.T) {
	clearLegacyEnv(t)
	_, err := NewLoader(WithDotEnv(filepath.Join(t.TempDir(), ".env"))).Load()
	assert.Error(t, err)
}
