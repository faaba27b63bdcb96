// Package pgxstore is the PostgreSQL storage engine for normup built on pgx v5.
// Upserts are rendered as INSERT ... ON CONFLICT ... DO UPDATE ... RETURNING
// and the created flag is read from the system column xmax.
package pgxstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kintsdev/normup"
	"github.com/kintsdev/normup/internal/sqlutil"
)

// createdColumn carries xmax = 0 back from RETURNING; it is stripped from the row
const createdColumn = "__normup_created"

// Executor abstracts pgxpool.Pool and pgx.Tx
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements normup.QueryInterface over a pgx pool or transaction
type Store struct {
	pool     *pgxpool.Pool
	exec     Executor
	logger   normup.Logger
	metrics  normup.Metrics
	poolOpts []PoolOption
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the statement logger; statements are logged at debug level
func WithLogger(l normup.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics reports pool usage on every Health call
func WithMetrics(m normup.Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New opens a pool sized by cfg and pings it
func New(ctx context.Context, cfg *normup.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, &normup.ORMError{Code: normup.ErrCodeConnection, Message: "nil config"}
	}
	s := newStore(nil, append([]Option{WithPool(poolFromConfig(cfg))}, opts...))
	if err := s.connect(ctx, cfg.ConnString()); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithConnString opens a pool from a pgx connection string
func NewWithConnString(ctx context.Context, connString string, opts ...Option) (*Store, error) {
	s := newStore(nil, opts)
	if err := s.connect(ctx, connString); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithExecutor wraps an existing executor such as a pgx.Tx or a pgx.Conn
func NewWithExecutor(exec Executor, opts ...Option) *Store {
	return newStore(exec, opts)
}

func newStore(exec Executor, opts []Option) *Store {
	s := &Store{exec: exec, logger: normup.NoopLogger{}, metrics: normup.NoopMetrics{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Capabilities() normup.Capabilities {
	return normup.Capabilities{Upserts: true, Returning: true, ReportsCreated: true}
}

// Upsert runs one INSERT ... ON CONFLICT statement and returns the resulting row
func (s *Store) Upsert(ctx context.Context, model normup.ModelDescriptor, insert, update *normup.FieldMap) (normup.Row, bool, error) {
	u := sqlutil.Upsert{
		Table:         model.Table,
		InsertColumns: insert.Keys(),
		InsertValues:  insert.Values(),
		UpdateColumns: update.Keys(),
		UpdateValues:  update.Values(),
		Conflict:      model.ConflictColumns,
		Returning:     `*, (xmax = 0) AS "` + createdColumn + `"`,
	}
	query, args, err := sqlutil.BuildOnConflict(u)
	if err != nil {
		return nil, false, &normup.ORMError{Code: normup.ErrCodeSchema, Message: err.Error(), Internal: err}
	}
	query = sqlutil.ConvertQMarksToPgPlaceholders(query)
	s.logger.Debug("upsert", normup.Field{Key: "stmt", Value: sqlutil.InlineSQL(query, args)})

	rows, err := s.exec.Query(ctx, query, args...)
	if err != nil {
		return nil, false, wrapPgError(err, query, args)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, wrapPgError(err, query, args)
		}
		return nil, false, &normup.ORMError{Code: normup.ErrCodeNotFound, Message: "upsert returned no row", Query: query, Args: args}
	}
	vals, err := rows.Values()
	if err != nil {
		return nil, false, wrapPgError(err, query, args)
	}
	row := normup.Row{}
	for i, fd := range rows.FieldDescriptions() {
		if i < len(vals) {
			row[fd.Name] = vals[i]
		}
	}
	created := len(u.InsertColumns) == 0
	if v, ok := row[createdColumn]; ok {
		if b, ok := v.(bool); ok {
			created = b
		}
		delete(row, createdColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, false, wrapPgError(err, query, args)
	}
	return row, created, nil
}

// WithTx runs fn against a Store bound to a new transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.pool == nil {
		return &normup.ORMError{Code: normup.ErrCodeTransaction, Message: "store is not backed by a pool"}
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapPgError(err, "BEGIN", nil)
	}
	if err := fn(&Store{exec: tx, logger: s.logger, metrics: s.metrics}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", normup.Field{Key: "error", Value: rbErr})
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapPgError(err, "COMMIT", nil)
	}
	return nil
}

// Exec runs a statement outside the upsert path, e.g. DDL from the migration package
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	s.logger.Debug("exec", normup.Field{Key: "stmt", Value: sqlutil.InlineSQL(query, args)})
	if _, err := s.exec.Exec(ctx, query, args...); err != nil {
		return wrapPgError(err, query, args)
	}
	return nil
}

// Health pings the pool and reports its connection counts
func (s *Store) Health(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	stat := s.pool.Stat()
	s.metrics.ConnectionCount(stat.AcquiredConns(), stat.IdleConns())
	return ping(ctx, s.pool)
}

// Pool exposes the underlying pool; nil for executor-backed stores
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
