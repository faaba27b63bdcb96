package sqlutil

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ConvertQMarksToPgPlaceholders converts '?' placeholders to PostgreSQL-style $1, $2, ...
// Question marks inside single-quoted literals or double-quoted identifiers are kept.
func ConvertQMarksToPgPlaceholders(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 8) // small headroom
	var buf [20]byte    // stack buffer for itoa
	index := 1
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\'' && !inDouble:
			inSingle = !inSingle
		case s[i] == '"' && !inSingle:
			inDouble = !inDouble
		case s[i] == '?' && !inSingle && !inDouble:
			sb.WriteByte('$')
			sb.Write(strconv.AppendInt(buf[:0], int64(index), 10))
			index++
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// QuoteIdent wraps an identifier with double quotes (ANSI, PostgreSQL, SQLite)
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteIdentBacktick wraps an identifier with backticks (MySQL)
func QuoteIdentBacktick(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

// InlineSQL returns a paste-ready SQL with all $n or ? placeholders inlined as SQL literals and a trailing semicolon
func InlineSQL(query string, args []any) string {
	inlined := query
	if len(args) > 0 {
		if strings.Contains(query, "$1") {
			for i := len(args); i >= 1; i-- {
				inlined = strings.ReplaceAll(inlined, fmt.Sprintf("$%d", i), SQLLiteral(args[i-1]))
			}
		} else {
			var sb strings.Builder
			n := 0
			for i := 0; i < len(query); i++ {
				if query[i] == '?' && n < len(args) {
					sb.WriteString(SQLLiteral(args[n]))
					n++
					continue
				}
				sb.WriteByte(query[i])
			}
			inlined = sb.String()
		}
	}
	if strings.HasSuffix(strings.TrimSpace(inlined), ";") {
		return inlined
	}
	return inlined + ";"
}

func SQLLiteral(v any) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case string:
		return "'" + escapeSQLString(t) + "'"
	case []byte:
		// Represent bytea as decode(hex,'hex') for easy psql paste
		return "decode('" + strings.ToUpper(hex.EncodeToString(t)) + "','hex')"
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return "'" + t.Format(time.RFC3339Nano) + "'"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%v", v)
	}
	return "'" + escapeSQLString(fmt.Sprintf("%v", v)) + "'"
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
