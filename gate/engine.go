package gate

import (
	"fmt"
	"log/slog"
	"time"
)

// Engine evaluates and enforces gate decisions. It is safe for concurrent
// use.
type Engine struct {
	cfg     Config
	now     func() time.Time
	audit   *auditLogger
	metrics *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock. Tests use it to pin decisions to a
// known instant.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the structured logger for gate audit events.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.audit = newAuditLogger(logger)
		}
	}
}

// WithMetrics records decision counters in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine. cfg is copied; unset fields take their defaults.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gate config: %w", err)
	}

	e := &Engine{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.audit == nil {
		e.audit = newAuditLogger(slog.Default())
	}
	return e, nil
}

// Config returns a copy of the engine configuration without the secret.
func (e *Engine) Config() Config {
	c := e.cfg.normalized()
	c.Secret = nil
	return c
}

// SecretConfigured reports whether enforcement can ever admit a token.
func (e *Engine) SecretConfigured() bool {
	return len(e.cfg.Secret) > 0
}
