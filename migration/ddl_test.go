package migration

import (
	"context"
	"testing"

	"github.com/kintsdev/normup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopQI struct{}

func (nopQI) Upsert(_ context.Context, _ normup.ModelDescriptor, _, _ *normup.FieldMap) (normup.Row, bool, error) {
	return nil, true, nil
}
func (nopQI) Capabilities() normup.Capabilities { return normup.Capabilities{Upserts: true} }

func userModel(t *testing.T) *normup.Model {
	t.Helper()
	db, err := normup.New(nopQI{})
	require.NoError(t, err)
	return db.MustDefine("User", []normup.Attribute{
		{Name: "id", Type: normup.TypeBigInt, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Unique: true, NotNull: true},
		{Name: "value", Type: normup.TypeInteger, Default: 0},
		{Name: "createdAt", Field: "created_at", Type: normup.TypeDate},
		normup.Virtual("label", nil, nil),
	})
}

func TestCreateTableSQLPostgres(t *testing.T) {
	sql, err := CreateTableSQL(userModel(t), "pgx")
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "users" (
	"id" BIGSERIAL PRIMARY KEY,
	"name" TEXT NOT NULL UNIQUE,
	"value" INTEGER DEFAULT 0,
	"created_at" TIMESTAMPTZ,
	"updatedAt" TIMESTAMPTZ NOT NULL
)`, sql)
}

func TestCreateTableSQLMySQL(t *testing.T) {
	sql, err := CreateTableSQL(userModel(t), "mysql")
	require.NoError(t, err)
	assert.Contains(t, sql, "`id` BIGINT PRIMARY KEY AUTO_INCREMENT")
	assert.Contains(t, sql, "`name` VARCHAR(255) NOT NULL UNIQUE")
	assert.Contains(t, sql, "`created_at` DATETIME(6),")
}

func TestCreateTableSQLSQLite(t *testing.T) {
	sql, err := CreateTableSQL(userModel(t), "sqlite")
	require.NoError(t, err)
	assert.Contains(t, sql, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`)
	assert.NotContains(t, sql, "label")
}

func TestCreateTableSQLCompositeKeys(t *testing.T) {
	db, err := normup.New(nopQI{})
	require.NoError(t, err)
	m := db.MustDefine("Membership", []normup.Attribute{
		{Name: "orgId", Field: "org_id", Type: normup.TypeUUID, PrimaryKey: true},
		{Name: "userId", Field: "user_id", Type: normup.TypeUUID, PrimaryKey: true},
		{Name: "slot", Type: normup.TypeInteger, UniqueGroup: "seat"},
		{Name: "room", UniqueGroup: "seat"},
		{Name: "token", Default: normup.DefaultUUIDv4},
	}, normup.WithoutTimestamps())
	sql, err := CreateTableSQL(m, "postgres")
	require.NoError(t, err)
	assert.Contains(t, sql, `"org_id" UUID NOT NULL`)
	assert.Contains(t, sql, `PRIMARY KEY ("org_id", "user_id")`)
	assert.Contains(t, sql, `CONSTRAINT "uq_memberships_slot_room" UNIQUE ("slot", "room")`)
	assert.Contains(t, sql, `"token" TEXT,`)
}

func TestNormalizeDialect(t *testing.T) {
	_, err := NormalizeDialect("dynamodb")
	assert.True(t, normup.IsCode(err, normup.ErrCodeUnsupported))
	d, err := NormalizeDialect("")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)
}
