// Package migration creates tables for normup models and runs versioned
// SQL migrations through golang-migrate.
package migration

import (
	"fmt"
	"strings"

	"github.com/kintsdev/normup"
	"github.com/kintsdev/normup/internal/sqlutil"
)

// Dialect spellings accepted here follow normup.Config.Dialect
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite3"
)

// NormalizeDialect folds driver names and aliases onto the three DDL dialects
func NormalizeDialect(d string) (string, error) {
	switch strings.ToLower(d) {
	case "", "pgx", "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", &normup.ORMError{Code: normup.ErrCodeUnsupported, Message: fmt.Sprintf("no DDL for dialect %q", d)}
}

func quoteFor(dialect string) func(string) string {
	if dialect == DialectMySQL {
		return sqlutil.QuoteIdentBacktick
	}
	return sqlutil.QuoteIdent
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for a model. Virtual
// attributes have no column. Generator defaults (DefaultNow, DefaultUUIDv4)
// are applied client-side and are not part of the DDL.
func CreateTableSQL(m *normup.Model, dialect string) (string, error) {
	d, err := NormalizeDialect(dialect)
	if err != nil {
		return "", err
	}
	quote := quoteFor(d)
	schema := m.Schema()
	pks := schema.PrimaryKeys()
	inlinePK := len(pks) == 1

	var cols []string
	for _, a := range schema.Attributes() {
		if a.IsVirtual() {
			continue
		}
		def := quote(a.Column()) + " " + columnType(a, d)
		switch {
		case a.PrimaryKey && a.AutoIncrement && d == DialectSQLite:
			def = quote(a.Column()) + " INTEGER PRIMARY KEY AUTOINCREMENT"
		case a.PrimaryKey && inlinePK:
			def += " PRIMARY KEY"
			if a.AutoIncrement && d == DialectMySQL {
				def += " AUTO_INCREMENT"
			}
		default:
			if a.AutoIncrement && d == DialectMySQL {
				def += " AUTO_INCREMENT"
			}
			if a.NotNull || a.PrimaryKey {
				def += " NOT NULL"
			}
			if a.Unique && a.UniqueGroup == "" {
				def += " UNIQUE"
			}
		}
		if lit, ok := defaultLiteral(a); ok {
			def += " DEFAULT " + lit
		}
		cols = append(cols, def)
	}
	if len(cols) == 0 {
		return "", &normup.ORMError{Code: normup.ErrCodeSchema, Message: fmt.Sprintf("model %s has no physical attributes", m.Name())}
	}
	if !inlinePK && len(pks) > 1 {
		names := make([]string, len(pks))
		for i, a := range pks {
			names[i] = quote(a.Column())
		}
		cols = append(cols, "PRIMARY KEY ("+strings.Join(names, ", ")+")")
	}
	for _, key := range schema.UniqueKeys() {
		if len(key) < 2 {
			continue
		}
		names := make([]string, len(key))
		for i, c := range key {
			names[i] = quote(c)
		}
		cname := "uq_" + m.Table() + "_" + strings.Join(key, "_")
		cols = append(cols, "CONSTRAINT "+quote(cname)+" UNIQUE ("+strings.Join(names, ", ")+")")
	}
	return "CREATE TABLE IF NOT EXISTS " + quote(m.Table()) + " (\n\t" + strings.Join(cols, ",\n\t") + "\n)", nil
}

func columnType(a normup.Attribute, dialect string) string {
	switch dialect {
	case DialectMySQL:
		switch a.Type {
		case normup.TypeString:
			return "VARCHAR(255)"
		case normup.TypeText:
			return "TEXT"
		case normup.TypeInteger:
			return "INT"
		case normup.TypeBigInt:
			return "BIGINT"
		case normup.TypeFloat:
			return "DOUBLE"
		case normup.TypeBoolean:
			return "BOOLEAN"
		case normup.TypeDate:
			return "DATETIME(6)"
		case normup.TypeUUID:
			return "CHAR(36)"
		case normup.TypeJSON:
			return "JSON"
		}
		return "VARCHAR(255)"
	case DialectSQLite:
		switch a.Type {
		case normup.TypeInteger, normup.TypeBigInt:
			return "INTEGER"
		case normup.TypeFloat:
			return "REAL"
		case normup.TypeBoolean:
			return "BOOLEAN"
		case normup.TypeDate:
			return "DATETIME"
		}
		return "TEXT"
	}
	switch a.Type {
	case normup.TypeInteger:
		if a.AutoIncrement {
			return "SERIAL"
		}
		return "INTEGER"
	case normup.TypeBigInt:
		if a.AutoIncrement {
			return "BIGSERIAL"
		}
		return "BIGINT"
	case normup.TypeFloat:
		return "DOUBLE PRECISION"
	case normup.TypeBoolean:
		return "BOOLEAN"
	case normup.TypeDate:
		return "TIMESTAMPTZ"
	case normup.TypeUUID:
		return "UUID"
	case normup.TypeJSON:
		return "JSONB"
	}
	return "TEXT"
}

// defaultLiteral renders static defaults; generators are skipped
func defaultLiteral(a normup.Attribute) (string, bool) {
	switch a.Default.(type) {
	case nil, normup.DefaultFunc, func() any:
		return "", false
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return sqlutil.SQLLiteral(a.Default), true
	}
	return "", false
}
