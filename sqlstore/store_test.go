package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/kintsdev/normup"
	"github.com/kintsdev/normup/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersDDL = `CREATE TABLE "users" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"name" TEXT NOT NULL UNIQUE,
	"value" INTEGER,
	"created_at" DATETIME NOT NULL,
	"updatedAt" DATETIME NOT NULL
)`

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), &normup.Config{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Exec(context.Background(), usersDDL))
	return s
}

func defineUser(t *testing.T, s *Store, clock func() time.Time) *normup.Model {
	t.Helper()
	db, err := normup.New(s, normup.WithClock(clock))
	require.NoError(t, err)
	return db.MustDefine("User", []normup.Attribute{
		{Name: "id", Type: normup.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Type: normup.TypeString, Unique: true, NotNull: true},
		{Name: "value", Type: normup.TypeInteger},
		{Name: "createdAt", Field: "created_at", Type: normup.TypeDate},
		{Name: "updatedAt", Type: normup.TypeDate},
	})
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"postgresql": Postgres, "pq": Postgres, "MySQL": MySQL, "mariadb": MySQL, "sqlite": SQLite} {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDialect("oracle")
	assert.True(t, normup.IsCode(err, normup.ErrCodeUnsupported))
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, normup.Capabilities{Upserts: true, Returning: true, ReportsCreated: true}, New(nil, Postgres).Capabilities())
	assert.False(t, New(nil, MySQL).Capabilities().Returning)
	assert.False(t, New(nil, Dialect("oracle")).Capabilities().Upserts)
}

func TestSQLiteUpsertInsertsThenUpdates(t *testing.T) {
	s := openSQLite(t)
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	now := t0
	user := defineUser(t, s, func() time.Time { return now })
	ctx := context.Background()

	out, err := user.Upsert(ctx, normup.Payload{"name": "Test", "value": 42})
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.EqualValues(t, 1, out.Record.Get("id"))
	assert.EqualValues(t, 42, out.Record.Get("value"))
	firstCreated := out.Record.Get("createdAt")

	now = t0.Add(time.Hour)
	out, err = user.Upsert(ctx, normup.Payload{"name": "Test", "value": 43})
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.EqualValues(t, 1, out.Record.Get("id"))
	assert.EqualValues(t, 43, out.Record.Get("value"))
	assert.Equal(t, firstCreated, out.Record.Get("createdAt"), "created_at survives the update")
	assert.NotEqual(t, firstCreated, out.Record.Get("updatedAt"))

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM "users"`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteUpsertMissingRequiredFieldReachesStorage(t *testing.T) {
	s := openSQLite(t)
	user := defineUser(t, s, func() time.Time { return time.Now().UTC() })

	// no model-level validation; the NOT NULL constraint is enforced by SQLite
	_, err := user.Upsert(context.Background(), normup.Payload{"value": 1}, normup.WithConflictFields("id"))
	require.Error(t, err)
	assert.True(t, normup.IsCode(err, normup.ErrCodeConstraint), "got %v", err)
}

func TestSQLiteUpsertByPrimaryKey(t *testing.T) {
	s := openSQLite(t)
	user := defineUser(t, s, func() time.Time { return time.Now().UTC() })
	ctx := context.Background()

	_, err := user.Upsert(ctx, normup.Payload{"id": 10, "name": "a", "value": 1}, normup.WithConflictFields("id"))
	require.NoError(t, err)
	out, err := user.Upsert(ctx, normup.Payload{"id": 10, "name": "b", "value": 2}, normup.WithConflictFields("id"))
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, "b", out.Record.Get("name"))
}

func TestSQLiteUpsertDuplicateOnOtherKey(t *testing.T) {
	s := openSQLite(t)
	user := defineUser(t, s, func() time.Time { return time.Now().UTC() })
	ctx := context.Background()

	_, err := user.Upsert(ctx, normup.Payload{"id": 1, "name": "a"}, normup.WithConflictFields("id"))
	require.NoError(t, err)
	_, err = user.Upsert(ctx, normup.Payload{"id": 2, "name": "a"}, normup.WithConflictFields("id"))
	require.Error(t, err)
	assert.True(t, normup.IsCode(err, normup.ErrCodeDuplicate), "got %v", err)
}

func TestSQLiteUpsertLogsStatements(t *testing.T) {
	var stmts []string
	s := openSQLite(t)
	s.logger = loggerFunc(func(msg string, fields ...normup.Field) {
		for _, f := range fields {
			if f.Key == "stmt" {
				stmts = append(stmts, f.Value.(string))
			}
		}
	})
	user := defineUser(t, s, func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) })
	_, err := user.Upsert(context.Background(), normup.Payload{"name": "x", "value": 1})
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, `SELECT * FROM "users" WHERE "name" = 'x' LIMIT 1;`, stmts[0])
	assert.Contains(t, stmts[1], `ON CONFLICT ("name") DO UPDATE SET "name" = 'x', "value" = 1, "updatedAt" = '2024-01-01T00:00:00Z' RETURNING *;`)
}

// definePlainUser declares User exactly as callers usually do: no key
// column, a required secretValue and a virtual setter feeding value
func definePlainUser(t *testing.T, s *Store) *normup.Model {
	t.Helper()
	db, err := normup.New(s)
	require.NoError(t, err)
	user := db.MustDefine("User", []normup.Attribute{
		{Name: "name", Type: normup.TypeString},
		normup.Virtual("virtualValue", func(v any, rec *normup.Record) error {
			rec.Set("value", v)
			return nil
		}, nil),
		{Name: "value", Type: normup.TypeString},
		{Name: "secretValue", Type: normup.TypeInteger, NotNull: true},
		{Name: "createdAt", Field: "created_at", Type: normup.TypeDate},
	})
	ddl, err := migration.CreateTableSQL(user, migration.DialectSQLite)
	require.NoError(t, err)
	require.NoError(t, s.Exec(context.Background(), ddl))
	return user
}

func TestSQLiteUpsertModelWithoutDeclaredKey(t *testing.T) {
	s, err := Open(context.Background(), &normup.Config{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	user := definePlainUser(t, s)
	ctx := context.Background()

	pk := user.Schema().PrimaryKeys()
	require.Len(t, pk, 1)
	assert.Equal(t, "id", pk[0].Name)
	assert.True(t, pk[0].AutoIncrement)

	// the missing required column is rejected by SQLite, not by the model
	_, err = user.Upsert(ctx, normup.Payload{"name": "Grumpy Cat"})
	require.Error(t, err)
	assert.False(t, normup.IsCode(err, normup.ErrCodeValidation), "got %v", err)
	assert.False(t, normup.IsCode(err, normup.ErrCodeSchema), "got %v", err)
	assert.True(t, normup.IsCode(err, normup.ErrCodeConstraint), "got %v", err)

	out, err := user.Upsert(ctx, normup.Payload{"name": "Young Cat", "virtualValue": "999", "secretValue": 7})
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.EqualValues(t, 1, out.Record.Get("id"))
	assert.Equal(t, "999", out.Record.Get("value"))

	out, err = user.Upsert(ctx, normup.Payload{"id": 1, "name": "Old Cat", "virtualValue": "111", "secretValue": 7})
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, "Old Cat", out.Record.Get("name"))
	assert.Equal(t, "111", out.Record.Get("value"))
}

func TestSQLiteUpsertWithoutConflictTarget(t *testing.T) {
	s, err := Open(context.Background(), &normup.Config{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	db, err := normup.New(s)
	require.NoError(t, err)
	logs := db.MustDefine("Log", []normup.Attribute{{Name: "line"}}, normup.WithoutTimestamps(), normup.WithoutImplicitKey())

	_, err = logs.Upsert(context.Background(), normup.Payload{"line": "x"})
	require.Error(t, err)
	assert.True(t, normup.IsCode(err, normup.ErrCodeSchema), "got %v", err)
}

type loggerFunc func(msg string, fields ...normup.Field)

func (f loggerFunc) Debug(msg string, fields ...normup.Field) { f(msg, fields...) }
func (loggerFunc) Info(string, ...normup.Field)               {}
func (loggerFunc) Warn(string, ...normup.Field)               {}
func (loggerFunc) Error(string, ...normup.Field)              {}
