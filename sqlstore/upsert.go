package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/kintsdev/normup"
	"github.com/kintsdev/normup/internal/sqlutil"
)

// createdColumn carries xmax = 0 back from RETURNING on PostgreSQL
const createdColumn = "__normup_created"

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsertPostgres(ctx context.Context, u sqlutil.Upsert) (normup.Row, bool, error) {
	u.Returning = `*, (xmax = 0) AS "` + createdColumn + `"`
	query, args, err := sqlutil.BuildOnConflict(u)
	if err != nil {
		return nil, false, &normup.ORMError{Code: normup.ErrCodeSchema, Message: err.Error(), Internal: err}
	}
	query = sqlutil.ConvertQMarksToPgPlaceholders(query)
	s.logStmt(query, args)
	row, err := queryRow(ctx, s.db, query, args)
	if err != nil {
		return nil, false, wrapError(err, query, args)
	}
	created := len(u.InsertColumns) == 0
	if v, ok := row[createdColumn]; ok {
		if b, ok := v.(bool); ok {
			created = b
		}
		delete(row, createdColumn)
	}
	return row, created, nil
}

// upsertSQLite checks for a conflicting row and upserts inside one transaction.
// SQLite has no equivalent of xmax, so the check decides the created flag.
func (s *Store) upsertSQLite(ctx context.Context, model normup.ModelDescriptor, u sqlutil.Upsert, insert *normup.FieldMap) (normup.Row, bool, error) {
	u.Returning = "*"
	query, args, err := sqlutil.BuildOnConflict(u)
	if err != nil {
		return nil, false, &normup.ORMError{Code: normup.ErrCodeSchema, Message: err.Error(), Internal: err}
	}
	var row normup.Row
	created := true
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if keyArgs, ok := keyValues(insert, model.ConflictColumns); ok {
			check := sqlutil.BuildSelectByKey(u.Table, model.ConflictColumns, u.Quote)
			s.logStmt(check, keyArgs)
			existing, err := queryRow(ctx, tx, check, keyArgs)
			if err != nil && err != sql.ErrNoRows {
				return wrapError(err, check, keyArgs)
			}
			created = existing == nil
		}
		s.logStmt(query, args)
		r, err := queryRow(ctx, tx, query, args)
		if err != nil {
			return wrapError(err, query, args)
		}
		row = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return row, created, nil
}

// upsertMySQL runs ON DUPLICATE KEY UPDATE and reads the row back by key.
// MySQL reports 1 affected row for an insert and 2 (or 0 when nothing
// changed) for an update.
func (s *Store) upsertMySQL(ctx context.Context, model normup.ModelDescriptor, u sqlutil.Upsert, insert *normup.FieldMap) (normup.Row, bool, error) {
	query, args := sqlutil.BuildOnDuplicateKey(u)
	var row normup.Row
	var created bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		s.logStmt(query, args)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return wrapError(err, query, args)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrapError(err, query, args)
		}
		created = n == 1

		keys, keyArgs := model.ConflictColumns, []any(nil)
		if vals, ok := keyValues(insert, keys); ok {
			keyArgs = vals
		} else if created && model.AutoIncrement != "" {
			id, err := res.LastInsertId()
			if err != nil {
				return wrapError(err, query, args)
			}
			keys, keyArgs = []string{model.AutoIncrement}, []any{id}
		} else {
			// no way to address the row; the caller rebuilds it from the maps
			return nil
		}
		sel := sqlutil.BuildSelectByKey(u.Table, keys, u.Quote)
		s.logStmt(sel, keyArgs)
		r, err := queryRow(ctx, tx, sel, keyArgs)
		if err != nil && err != sql.ErrNoRows {
			return wrapError(err, sel, keyArgs)
		}
		row = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return row, created, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError(err, "BEGIN", nil)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("rollback failed", normup.Field{Key: "error", Value: rbErr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapError(err, "COMMIT", nil)
	}
	return nil
}

func keyValues(m *normup.FieldMap, cols []string) ([]any, bool) {
	if len(cols) == 0 {
		return nil, false
	}
	out := make([]any, len(cols))
	for i, c := range cols {
		v, ok := m.Get(c)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// queryRow returns the first row as a column map, or sql.ErrNoRows
func queryRow(ctx context.Context, q queryer, query string, args []any) (normup.Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	row, err := scanRow(rows)
	if err != nil {
		return nil, err
	}
	return row, rows.Err()
}

func scanRow(rows *sql.Rows) (normup.Row, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(normup.Row, len(types))
	for i, ct := range types {
		v := vals[i]
		// text columns come back as []byte from several drivers
		if b, ok := v.([]byte); ok && !isBinary(ct.DatabaseTypeName()) {
			v = string(b)
		}
		row[ct.Name()] = v
	}
	return row, nil
}

func isBinary(typeName string) bool {
	t := strings.ToUpper(typeName)
	return strings.Contains(t, "BLOB") || strings.Contains(t, "BINARY") || t == "BYTEA"
}
