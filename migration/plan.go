package migration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kintsdev/normup"
)

// PlanResult is the DDL needed to host a set of models
type PlanResult struct {
	Dialect    string
	Statements []string
	Warnings   []string
}

// Plan renders CREATE TABLE statements for models in the given order
func Plan(dialect string, models ...*normup.Model) (PlanResult, error) {
	d, err := NormalizeDialect(dialect)
	if err != nil {
		return PlanResult{}, err
	}
	plan := PlanResult{Dialect: d}
	for _, m := range models {
		stmt, err := CreateTableSQL(m, d)
		if err != nil {
			return plan, err
		}
		plan.Statements = append(plan.Statements, stmt)
		if len(m.Schema().PrimaryKeys()) == 0 && len(m.Schema().UniqueKeys()) == 0 {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("model %s has no primary or unique key; upserts need explicit conflict fields", m.Name()))
		}
		for _, a := range m.Schema().Attributes() {
			if a.AutoIncrement && !a.PrimaryKey && d == DialectSQLite {
				plan.Warnings = append(plan.Warnings, fmt.Sprintf("%s.%s: sqlite only auto-increments the primary key", m.Table(), a.Column()))
			}
		}
	}
	return plan, nil
}

// FormatPlan returns a human-friendly summary grouped by table
func FormatPlan(plan PlanResult) string {
	byTable := map[string][]string{}
	for _, s := range plan.Statements {
		tbl := extractTableName(s)
		byTable[tbl] = append(byTable[tbl], s)
	}
	tables := make([]string, 0, len(byTable))
	for k := range byTable {
		tables = append(tables, k)
	}
	sort.Strings(tables)

	var sb strings.Builder
	sb.WriteString("Migration Plan")
	if plan.Dialect != "" {
		sb.WriteString(" (" + plan.Dialect + ")")
	}
	sb.WriteString("\n")
	if len(plan.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range plan.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	for _, t := range tables {
		sb.WriteString(fmt.Sprintf("[%s]\n", t))
		for _, s := range byTable[t] {
			sb.WriteString(s)
			sb.WriteString(";\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// extractTableName pulls the table identifier from CREATE/ALTER TABLE statements
func extractTableName(sql string) string {
	s := strings.ToUpper(sql)
	idx := strings.Index(s, " TABLE ")
	if idx < 0 {
		return "global"
	}
	rest := strings.TrimSpace(sql[idx+len(" TABLE "):])
	if strings.HasPrefix(strings.ToUpper(rest), "IF NOT EXISTS ") {
		rest = rest[len("IF NOT EXISTS "):]
	}
	end := len(rest)
	if i := strings.IndexAny(rest, " (\n\t"); i >= 0 {
		end = i
	}
	return strings.Trim(strings.TrimSpace(rest[:end]), "\"`")
}
