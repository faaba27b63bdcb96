package migration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kintsdev/normup"
)

func TestExtractTableName(t *testing.T) {
	if extractTableName(`CREATE TABLE IF NOT EXISTS "users" (id bigint)`) != "users" {
		t.Fatalf("create")
	}
	if extractTableName("ALTER TABLE public.users ADD COLUMN x int") != "public.users" {
		t.Fatalf("alter")
	}
	if extractTableName("CREATE INDEX idx ON t(x)") != "global" {
		t.Fatalf("global")
	}
}

func TestPlanAndFormat(t *testing.T) {
	db, _ := normup.New(nopQI{})
	m := db.MustDefine("Log", []normup.Attribute{{Name: "line", Type: normup.TypeText}}, normup.WithoutTimestamps(), normup.WithoutImplicitKey())
	plan, err := Plan("sqlite", userModel(t), m)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Statements) != 2 || len(plan.Warnings) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	out := FormatPlan(plan)
	for _, want := range []string{"Migration Plan (sqlite3)", "[logs]", "[users]", "no primary or unique key"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

type recordingExec struct {
	stmts  []string
	failOn string
}

func (r *recordingExec) Exec(_ context.Context, query string, _ ...any) error {
	r.stmts = append(r.stmts, query)
	if r.failOn != "" && strings.Contains(query, r.failOn) {
		return errors.New("boom")
	}
	return nil
}

func TestAutoMigrate(t *testing.T) {
	rec := &recordingExec{}
	if err := AutoMigrate(context.Background(), rec, "postgres", userModel(t)); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if len(rec.stmts) != 1 || !strings.HasPrefix(rec.stmts[0], `CREATE TABLE IF NOT EXISTS "users"`) {
		t.Fatalf("stmts: %v", rec.stmts)
	}
}

func TestExecScriptStopsAtFailure(t *testing.T) {
	rec := &recordingExec{failOn: "bad"}
	err := ExecScript(context.Background(), rec, " ;  CREATE TABLE x(a int); ;  bad stmt;  CREATE INDEX i ON x(a);")
	if !normup.IsCode(err, normup.ErrCodeMigration) {
		t.Fatalf("want migration error, got %v", err)
	}
	if len(rec.stmts) != 2 {
		t.Fatalf("should stop after failing statement: %v", rec.stmts)
	}
}

func TestSplitSQLStatements_Edges(t *testing.T) {
	in := " ;  CREATE TABLE x(a int); ;  CREATE INDEX i ON x(a);  ;"
	out := splitSQLStatements(in)
	if len(out) != 2 || out[0] != "CREATE TABLE x(a int)" || out[1] != "CREATE INDEX i ON x(a)" {
		t.Fatalf("split: %v", out)
	}
}

func TestNewRunnerRejectsEmptyDir(t *testing.T) {
	if _, err := NewRunner("", "sqlite3://x.db", nil); !normup.IsCode(err, normup.ErrCodeMigration) {
		t.Fatalf("want migration error, got %v", err)
	}
}
