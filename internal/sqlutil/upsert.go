package sqlutil

import (
	"errors"
	"strings"
)

// ErrNoConflictTarget is returned when an ON CONFLICT statement has no target columns
var ErrNoConflictTarget = errors.New("upsert requires conflict columns (primary key or unique key)")

// Upsert describes one insert-or-update statement. Insert and Update columns
// are aligned with their value slices and rendered in order.
type Upsert struct {
	Table         string
	InsertColumns []string
	InsertValues  []any
	UpdateColumns []string
	UpdateValues  []any
	Conflict      []string
	Quote         func(string) string
	Returning     string // raw RETURNING list, empty for none
}

func (u Upsert) quote(id string) string {
	if u.Quote == nil {
		return QuoteIdent(id)
	}
	return u.Quote(id)
}

func (u Upsert) quoteAll(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = u.quote(id)
	}
	return strings.Join(parts, ", ")
}

func qmarks(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// BuildOnConflict renders INSERT ... ON CONFLICT (...) DO UPDATE SET ... with '?'
// placeholders (PostgreSQL, SQLite). An empty update list re-assigns the first
// conflict column from EXCLUDED so the conflicting row is still returned.
func BuildOnConflict(u Upsert) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(u.quote(u.Table))
	if len(u.InsertColumns) == 0 {
		sb.WriteString(" DEFAULT VALUES")
		if u.Returning != "" {
			sb.WriteString(" RETURNING ")
			sb.WriteString(u.Returning)
		}
		return sb.String(), nil, nil
	}
	if len(u.Conflict) == 0 {
		return "", nil, ErrNoConflictTarget
	}
	sb.WriteString(" (")
	sb.WriteString(u.quoteAll(u.InsertColumns))
	sb.WriteString(") VALUES (")
	sb.WriteString(qmarks(len(u.InsertColumns)))
	sb.WriteString(") ON CONFLICT (")
	sb.WriteString(u.quoteAll(u.Conflict))
	sb.WriteString(") DO UPDATE SET ")
	args := make([]any, 0, len(u.InsertValues)+len(u.UpdateValues))
	args = append(args, u.InsertValues...)
	if len(u.UpdateColumns) == 0 {
		c := u.quote(u.Conflict[0])
		sb.WriteString(c + " = EXCLUDED." + c)
	} else {
		for i, col := range u.UpdateColumns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(u.quote(col))
			sb.WriteString(" = ?")
		}
		args = append(args, u.UpdateValues...)
	}
	if u.Returning != "" {
		sb.WriteString(" RETURNING ")
		sb.WriteString(u.Returning)
	}
	return sb.String(), args, nil
}

// BuildOnDuplicateKey renders MySQL's INSERT ... ON DUPLICATE KEY UPDATE.
// MySQL picks the conflicting key itself, so Conflict is only used for the
// no-op assignment when there is nothing to update.
func BuildOnDuplicateKey(u Upsert) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(u.quote(u.Table))
	if len(u.InsertColumns) == 0 {
		sb.WriteString(" () VALUES ()")
		return sb.String(), nil
	}
	sb.WriteString(" (")
	sb.WriteString(u.quoteAll(u.InsertColumns))
	sb.WriteString(") VALUES (")
	sb.WriteString(qmarks(len(u.InsertColumns)))
	sb.WriteString(") ON DUPLICATE KEY UPDATE ")
	args := make([]any, 0, len(u.InsertValues)+len(u.UpdateValues))
	args = append(args, u.InsertValues...)
	if len(u.UpdateColumns) == 0 {
		col := u.InsertColumns[0]
		if len(u.Conflict) > 0 {
			col = u.Conflict[0]
		}
		c := u.quote(col)
		sb.WriteString(c + " = " + c)
		return sb.String(), args
	}
	for i, col := range u.UpdateColumns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(u.quote(col))
		sb.WriteString(" = ?")
	}
	args = append(args, u.UpdateValues...)
	return sb.String(), args
}

// BuildSelectByKey renders SELECT * FROM table WHERE k1 = ? AND k2 = ? LIMIT 1
func BuildSelectByKey(table string, keys []string, quote func(string) string) string {
	if quote == nil {
		quote = QuoteIdent
	}
	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = quote(k) + " = ?"
	}
	return "SELECT * FROM " + quote(table) + " WHERE " + strings.Join(conds, " AND ") + " LIMIT 1"
}
