package normup

import (
	"context"
	"errors"
)

type ErrorCode int

const (
	ErrCodeConnection ErrorCode = iota
	ErrCodeNotFound
	ErrCodeDuplicate
	ErrCodeConstraint
	ErrCodeTransaction
	ErrCodeMigration
	ErrCodeValidation
	// Specific validation subtypes
	ErrCodeInvalidColumn
	ErrCodeInvalidFunction
	ErrCodeInvalidCast
	ErrCodeStringTooLong
	// Model-layer conditions
	ErrCodeUnknownAttribute
	ErrCodeUnsupported
	ErrCodeSchema
)

var codeNames = map[ErrorCode]string{
	ErrCodeConnection:       "connection",
	ErrCodeNotFound:         "not_found",
	ErrCodeDuplicate:        "duplicate",
	ErrCodeConstraint:       "constraint",
	ErrCodeTransaction:      "transaction",
	ErrCodeMigration:        "migration",
	ErrCodeValidation:       "validation",
	ErrCodeInvalidColumn:    "invalid_column",
	ErrCodeInvalidFunction:  "invalid_function",
	ErrCodeInvalidCast:      "invalid_cast",
	ErrCodeStringTooLong:    "string_too_long",
	ErrCodeUnknownAttribute: "unknown_attribute",
	ErrCodeUnsupported:      "unsupported",
	ErrCodeSchema:           "schema",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "unknown"
}

// ORMError is a structured error for normup and its storage engines
type ORMError struct {
	Code     ErrorCode
	Message  string
	Internal error
	Query    string
	Args     []any
}

func (e *ORMError) Error() string { return e.Message }

// Unwrap returns the internal error so errors.Is/errors.As can traverse the chain
func (e *ORMError) Unwrap() error { return e.Internal }

// IsCode reports whether err carries an ORMError with the given code
func IsCode(err error, code ErrorCode) bool {
	var oe *ORMError
	return errors.As(err, &oe) && oe.Code == code
}

// CodeFromSQLState maps a PostgreSQL SQLSTATE to an ErrorCode.
// Shared by every PostgreSQL driver adapter.
func CodeFromSQLState(state string) ErrorCode {
	switch state {
	// duplicate / constraint family
	case "23505": // unique_violation
		return ErrCodeDuplicate
	case "23503", // foreign_key_violation
		"23514", // check_violation
		"23502", // not_null_violation
		"23513": // exclusion_violation
		return ErrCodeConstraint
	// transaction / concurrency
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"55P03", // lock_not_available
		"57014": // query_canceled
		return ErrCodeTransaction
	// connection related
	case "08000", // connection_exception
		"08001", // sqlclient_unable_to_establish_sqlconnection
		"08003", // connection_does_not_exist
		"08004", // sqlserver_rejected_establishment_of_sqlconnection
		"08006", // connection_failure
		"57P01", // admin_shutdown
		"57P02", // crash_shutdown
		"57P03", // cannot_connect_now
		"53300": // too_many_connections
		return ErrCodeConnection
	case "42703": // undefined_column
		return ErrCodeInvalidColumn
	case "42883": // undefined_function
		return ErrCodeInvalidFunction
	case "22P02": // invalid_text_representation
		return ErrCodeInvalidCast
	case "22001": // string_data_right_truncation
		return ErrCodeStringTooLong
	default:
		return ErrCodeValidation
	}
}

// errorKind labels an error for metrics
func errorKind(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	var oe *ORMError
	if errors.As(err, &oe) {
		return oe.Code.String()
	}
	return "storage"
}
