// Package sqlstore is a database/sql storage engine for normup covering
// PostgreSQL (lib/pq), MySQL and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kintsdev/normup"
	"github.com/kintsdev/normup/internal/sqlutil"
)

// Dialect names a database/sql driver this package knows how to upsert with
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect accepts the registered driver names and common aliases
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	}
	return "", &normup.ORMError{Code: normup.ErrCodeUnsupported, Message: fmt.Sprintf("unsupported sql dialect %q", s)}
}

// Quote returns the identifier quoting function of the dialect
func (d Dialect) Quote() func(string) string {
	if d == MySQL {
		return sqlutil.QuoteIdentBacktick
	}
	return sqlutil.QuoteIdent
}

// Store implements normup.QueryInterface over *sql.DB
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  normup.Logger
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

// Open opens cfg.DSN with the driver named by cfg.Dialect and pings it
func Open(ctx context.Context, cfg *normup.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, &normup.ORMError{Code: normup.ErrCodeConnection, Message: "nil config"}
	}
	d, err := ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if dsn == "" && d == Postgres {
		dsn = cfg.ConnString()
	}
	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, &normup.ORMError{Code: normup.ErrCodeConnection, Message: err.Error(), Internal: err}
	}
	if d == SQLite && strings.Contains(dsn, ":memory:") {
		// every connection would get its own in-memory database
		db.SetMaxOpenConns(1)
	} else if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConnections))
	}
	if cfg.MinConnections > 0 {
		db.SetMaxIdleConns(int(cfg.MinConnections))
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &normup.ORMError{Code: normup.ErrCodeConnection, Message: err.Error(), Internal: err}
	}
	return New(db, d, opts...), nil
}

// New wraps an open *sql.DB
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect, logger: normup.NoopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Capabilities() normup.Capabilities {
	switch s.dialect {
	case MySQL:
		return normup.Capabilities{Upserts: true, Returning: false, ReportsCreated: true}
	case Postgres, SQLite:
		return normup.Capabilities{Upserts: true, Returning: true, ReportsCreated: true}
	}
	return normup.Capabilities{}
}

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Exec runs a statement outside the upsert path, e.g. DDL from the migration package.
// '?' placeholders are rewritten for PostgreSQL.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	if s.dialect == Postgres {
		query = sqlutil.ConvertQMarksToPgPlaceholders(query)
	}
	s.logger.Debug("exec", normup.Field{Key: "stmt", Value: sqlutil.InlineSQL(query, args)})
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrapError(err, query, args)
	}
	return nil
}

// Upsert dispatches to the dialect's native insert-or-update statement
func (s *Store) Upsert(ctx context.Context, model normup.ModelDescriptor, insert, update *normup.FieldMap) (normup.Row, bool, error) {
	u := sqlutil.Upsert{
		Table:         model.Table,
		InsertColumns: insert.Keys(),
		InsertValues:  insert.Values(),
		UpdateColumns: update.Keys(),
		UpdateValues:  update.Values(),
		Conflict:      model.ConflictColumns,
		Quote:         s.dialect.Quote(),
	}
	switch s.dialect {
	case Postgres:
		return s.upsertPostgres(ctx, u)
	case SQLite:
		return s.upsertSQLite(ctx, model, u, insert)
	case MySQL:
		return s.upsertMySQL(ctx, model, u, insert)
	}
	return nil, false, &normup.ORMError{Code: normup.ErrCodeUnsupported, Message: fmt.Sprintf("unsupported sql dialect %q", s.dialect)}
}

func (s *Store) logStmt(query string, args []any) {
	s.logger.Debug("upsert", normup.Field{Key: "stmt", Value: sqlutil.InlineSQL(query, args)})
}
