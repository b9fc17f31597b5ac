package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of eventgate environment variables.
const DefaultEnvPrefix = "EVENTGATE_"

// envNestingSeparator separates nested keys in variable names, so
// EVENTGATE_GATE__COOKIE_NAME sets gate.cookie_name.
const envNestingSeparator = "__"

// listSeparator splits list values given as a single string.
const listSeparator = ","

// Loader merges configuration sources. Later sources override earlier ones:
// defaults, the YAML file, legacy variables, EVENTGATE_* variables, flags.
// Variables from .env files count as environment variables.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	flags     map[string]any
	dotenv    []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithFlags sets explicit overrides keyed by dotted config key. Only
// flags the user actually set should be passed.
func WithFlags(flags map[string]any) Option {
	return func(l *Loader) {
		l.flags = flags
	}
}

// WithDotEnv loads KEY=value files into the process environment before
// reading it. Variables already set in the environment are not replaced.
func WithDotEnv(paths ...string) Option {
	return func(l *Loader) {
		l.dotenv = append(l.dotenv, paths...)
	}
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and returns the validated configuration.
func (l *Loader) Load() (*Config, error) {
	if len(l.dotenv) > 0 {
		if err := godotenv.Load(l.dotenv...); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := l.k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	if legacy := legacyEnv(os.LookupEnv); len(legacy) > 0 {
		if err := l.k.Load(confmap.Provider(legacy, "."), nil); err != nil {
			return nil, fmt.Errorf("load legacy env: %w", err)
		}
	}

	if err := l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if len(l.flags) > 0 {
		if err := l.k.Load(confmap.Provider(l.flags, "."), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{DecoderConfig: decoderConfig()}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// decoderConfig extends koanf's default decoding so a comma separated
// string, as set through the environment, fills a list key.
func decoderConfig() *mapstructure.DecoderConfig {
	return &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(listSeparator),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		WeaklyTypedInput: true,
	}
}

// envKey maps EVENTGATE_SERVER__TLS_CERT to server.tls_cert.
func (l *Loader) envKey(s string) string {
	s = strings.TrimPrefix(s, l.envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, envNestingSeparator, ".")
}

// Keys returns every loaded configuration key. Valid after Load.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
