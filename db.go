package normup

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"time"
)

// DB binds model definitions to a storage engine
type DB struct {
	qi      QueryInterface
	config  *Config
	logger  Logger
	metrics Metrics
	audit   AuditHook
	now     func() time.Time
	strict  bool
	breaker *circuitBreaker

	mu     sync.RWMutex
	models map[string]*Model
}

// New creates a DB over the given storage engine
func New(qi QueryInterface, opts ...Option) (*DB, error) {
	if qi == nil {
		return nil, errors.New("query interface is nil")
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	db := &DB{
		qi:      qi,
		config:  options.config,
		logger:  options.logger,
		metrics: options.metrics,
		audit:   options.audit,
		now:     options.clock,
		strict:  options.strict,
		models:  map[string]*Model{},
	}
	if c := options.config; c != nil {
		if c.StrictAttributes {
			db.strict = true
		}
		if c.CircuitBreakerEnabled {
			options.breaker = true
			options.breakerCfg = circuitBreakerConfig{
				failureThreshold:    c.CircuitFailureThreshold,
				openTimeout:         c.CircuitOpenTimeout,
				halfOpenMaxInFlight: c.CircuitHalfOpenMaxCalls,
			}
		}
	}
	if options.breaker {
		cfg := options.breakerCfg
		cfg.failureThreshold = defaultIfZeroInt(cfg.failureThreshold, 5)
		cfg.openTimeout = defaultIfZeroDuration(cfg.openTimeout, 30*time.Second)
		cfg.halfOpenMaxInFlight = defaultIfZeroInt(cfg.halfOpenMaxInFlight, 1)
		cfg.onStateChange = func(state string) {
			db.metrics.CircuitStateChanged(state)
			db.logger.Warn("circuit state changed", Field{Key: "state", Value: state})
		}
		db.breaker = newCircuitBreaker(cfg)
	}
	return db, nil
}

func defaultIfZeroInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defaultIfZeroDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

// Define registers a model built from explicit attribute descriptors
func (db *DB) Define(name string, attrs []Attribute, opts ...ModelOption) (*Model, error) {
	m, err := newModel(db, name, attrs, opts)
	if err != nil {
		return nil, err
	}
	return db.register(m)
}

// MustDefine is like Define but panics on error
func (db *DB) MustDefine(name string, attrs []Attribute, opts ...ModelOption) *Model {
	m, err := db.Define(name, attrs, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func (db *DB) register(m *Model) (*Model, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, dup := db.models[m.name]; dup {
		return nil, &ORMError{Code: ErrCodeSchema, Message: fmt.Sprintf("model %s already defined", m.name)}
	}
	db.models[m.name] = m
	return m, nil
}

// Model returns a registered model by name
func (db *DB) Model(name string) (*Model, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.models[name]
	return m, ok
}

// Models lists registered models sorted by name
func (db *DB) Models() []*Model {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*Model, 0, len(db.models))
	for _, m := range db.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (db *DB) modelForType(t reflect.Type) (*Model, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, m := range db.models {
		if m.structType == t {
			return m, true
		}
	}
	return nil, false
}

// QueryInterface exposes the storage engine
func (db *DB) QueryInterface() QueryInterface { return db.qi }

func (db *DB) Logger() Logger { return db.logger }

func (db *DB) clock() func() time.Time { return db.now }

// Close closes the storage engine when it holds resources
func (db *DB) Close() error {
	if c, ok := db.qi.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
