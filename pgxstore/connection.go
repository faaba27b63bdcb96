package pgxstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kintsdev/normup"
)

// PoolOption adjusts the pool configuration before the store connects
type PoolOption func(*pgxpool.Config)

// WithPool applies pool options when the store opens its own pool. They run
// after the sizing taken from normup.Config, so they win.
func WithPool(opts ...PoolOption) Option {
	return func(s *Store) { s.poolOpts = append(s.poolOpts, opts...) }
}

// WithStatementCache switches to cached prepared statements of the given capacity
func WithStatementCache(capacity int) PoolOption {
	return func(pc *pgxpool.Config) {
		if capacity <= 0 {
			return
		}
		pc.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		pc.ConnConfig.StatementCacheCapacity = capacity
	}
}

// poolFromConfig carries the pool sizing of cfg; zero fields keep pgx defaults
func poolFromConfig(cfg *normup.Config) PoolOption {
	return func(pc *pgxpool.Config) {
		setPositive(&pc.MaxConns, cfg.MaxConnections)
		setPositive(&pc.MinConns, cfg.MinConnections)
		setPositive(&pc.MaxConnLifetime, cfg.MaxConnLifetime)
		setPositive(&pc.MaxConnIdleTime, cfg.MaxConnIdleTime)
		setPositive(&pc.HealthCheckPeriod, cfg.HealthCheckPeriod)
		WithStatementCache(cfg.StatementCacheCapacity)(pc)
	}
}

func setPositive[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// connect opens and pings a pool for s
func (s *Store) connect(ctx context.Context, connString string) error {
	pc, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return &normup.ORMError{Code: normup.ErrCodeConnection, Message: err.Error(), Internal: err}
	}
	for _, opt := range s.poolOpts {
		opt(pc)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return &normup.ORMError{Code: normup.ErrCodeConnection, Message: err.Error(), Internal: err}
	}
	if err := ping(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	s.pool, s.exec = pool, pool
	return nil
}

const pingTimeout = 2 * time.Second

func ping(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return &normup.ORMError{Code: normup.ErrCodeConnection, Message: "pool is not open"}
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return &normup.ORMError{Code: normup.ErrCodeConnection, Message: "ping: " + err.Error(), Internal: err}
	}
	return nil
}
