package migration

import (
	"context"
	"strings"

	"github.com/kintsdev/normup"
)

// Execer runs one statement. pgxstore.Store and sqlstore.Store satisfy it.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// AutoMigrate creates the tables of the given models when they do not exist
func AutoMigrate(ctx context.Context, exec Execer, dialect string, models ...*normup.Model) error {
	plan, err := Plan(dialect, models...)
	if err != nil {
		return err
	}
	return Apply(ctx, exec, plan)
}

// Apply executes the plan's statements in order and stops at the first failure
func Apply(ctx context.Context, exec Execer, plan PlanResult) error {
	for _, stmt := range plan.Statements {
		if err := exec.Exec(ctx, stmt); err != nil {
			return wrapMigrationError(err, stmt)
		}
	}
	return nil
}

// ExecScript runs a ';'-separated script statement by statement
func ExecScript(ctx context.Context, exec Execer, script string) error {
	for _, stmt := range splitSQLStatements(script) {
		if err := exec.Exec(ctx, stmt); err != nil {
			return wrapMigrationError(err, stmt)
		}
	}
	return nil
}

func wrapMigrationError(err error, stmt string) error {
	return &normup.ORMError{Code: normup.ErrCodeMigration, Message: "migration statement failed: " + err.Error(), Internal: err, Query: stmt}
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
