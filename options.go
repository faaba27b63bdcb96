package normup

import (
	"context"
	"time"
)

type options struct {
	config     *Config
	logger     Logger
	metrics    Metrics
	audit      AuditHook
	clock      func() time.Time
	strict     bool
	breaker    bool
	breakerCfg circuitBreakerConfig
}

type Option func(*options)

func defaultOptions() options {
	return options{
		logger:  NoopLogger{},
		metrics: NoopMetrics{},
		audit:   AuditHookFunc(func(_ context.Context, _ AuditEntry) {}),
		clock:   defaultClock,
	}
}

func WithConfig(c *Config) Option           { return func(o *options) { o.config = c } }
func WithLogger(l Logger) Option            { return func(o *options) { o.logger = l } }
func WithMetrics(m Metrics) Option          { return func(o *options) { o.metrics = m } }
func WithAuditHook(h AuditHook) Option      { return func(o *options) { o.audit = h } }
func WithClock(now func() time.Time) Option { return func(o *options) { o.clock = now } }

// WithStrictAttributes rejects payload keys that are not in the model schema
func WithStrictAttributes(strict bool) Option { return func(o *options) { o.strict = strict } }

// WithCircuitBreaker guards dispatch; zero values fall back to 5 failures, 30s, 1 trial call
func WithCircuitBreaker(failureThreshold int, openTimeout time.Duration, halfOpenMaxCalls int) Option {
	return func(o *options) {
		o.breaker = true
		o.breakerCfg = circuitBreakerConfig{
			failureThreshold:    failureThreshold,
			openTimeout:         openTimeout,
			halfOpenMaxInFlight: halfOpenMaxCalls,
		}
	}
}
