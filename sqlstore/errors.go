package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/kintsdev/normup"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// wrapError maps driver errors onto normup.ORMError, keeping the original as Internal
func wrapError(err error, query string, args []any) error {
	if err == nil {
		return nil
	}
	var oe *normup.ORMError
	if errors.As(err, &oe) {
		return err
	}
	code, ok := classify(err)
	if !ok {
		return err
	}
	return &normup.ORMError{Code: code, Message: err.Error(), Internal: err, Query: query, Args: args}
}

func classify(err error) (normup.ErrorCode, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrTxDone) {
		return normup.ErrCodeTransaction, true
	}
	if errors.Is(err, sql.ErrNoRows) {
		return normup.ErrCodeNotFound, true
	}
	if errors.Is(err, sql.ErrConnDone) {
		return normup.ErrCodeConnection, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return normup.CodeFromSQLState(string(pqErr.Code)), true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlCode(myErr.Number)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return sqliteCode(liteErr)
	}
	return 0, false
}

// mysqlCode classifies server error numbers; unknown ones stay unclassified
func mysqlCode(n uint16) (normup.ErrorCode, bool) {
	switch n {
	case 1062: // ER_DUP_ENTRY
		return normup.ErrCodeDuplicate, true
	case 1048, // ER_BAD_NULL_ERROR
		1451, // ER_ROW_IS_REFERENCED_2
		1452, // ER_NO_REFERENCED_ROW_2
		3819: // ER_CHECK_CONSTRAINT_VIOLATED
		return normup.ErrCodeConstraint, true
	case 1205, // ER_LOCK_WAIT_TIMEOUT
		1213: // ER_LOCK_DEADLOCK
		return normup.ErrCodeTransaction, true
	case 1040, // ER_CON_COUNT_ERROR
		1045, // ER_ACCESS_DENIED_ERROR
		2002, 2003, 2006, 2013:
		return normup.ErrCodeConnection, true
	case 1054: // ER_BAD_FIELD_ERROR
		return normup.ErrCodeInvalidColumn, true
	case 1305: // ER_SP_DOES_NOT_EXIST
		return normup.ErrCodeInvalidFunction, true
	case 1366: // ER_TRUNCATED_WRONG_VALUE_FOR_FIELD
		return normup.ErrCodeInvalidCast, true
	case 1406: // ER_DATA_TOO_LONG
		return normup.ErrCodeStringTooLong, true
	}
	return 0, false
}

func sqliteCode(e sqlite3.Error) (normup.ErrorCode, bool) {
	switch e.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return normup.ErrCodeDuplicate, true
	case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintForeignKey, sqlite3.ErrConstraintCheck:
		return normup.ErrCodeConstraint, true
	}
	switch e.Code {
	case sqlite3.ErrConstraint:
		return normup.ErrCodeConstraint, true
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return normup.ErrCodeTransaction, true
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
		return normup.ErrCodeConnection, true
	case sqlite3.ErrTooBig:
		return normup.ErrCodeStringTooLong, true
	}
	return 0, false
}
