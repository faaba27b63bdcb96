//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kintsdev/normup"
	"github.com/kintsdev/normup/migration"
	"github.com/kintsdev/normup/pgxstore"
)

var store *pgxstore.Store

func TestMain(m *testing.M) {
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := getenvDefault("PGPASSWORD", "postgres")
	db := getenvDefault("PGDATABASE", "postgres")

	if err := waitTCP(host, port, 30*time.Second); err != nil {
		fmt.Println("postgres not reachable:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dsn := fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable", host, port, db, user, pass)
	var err error
	store, err = pgxstore.NewWithConnString(ctx, dsn)
	cancel()
	if err != nil {
		fmt.Println("failed to connect pg:", err)
		os.Exit(1)
	}

	code := m.Run()
	_ = store.Close()
	os.Exit(code)
}

// newUserModel defines the canonical User model over a fresh table
func newUserModel(t *testing.T, table string) *normup.Model {
	t.Helper()
	ctx := context.Background()
	db, err := normup.New(store)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	user, err := db.Define("User", []normup.Attribute{
		{Name: "name", Unique: true, NotNull: true},
		normup.Virtual("virtualValue", func(v any, rec *normup.Record) error {
			rec.Set("value", v)
			return nil
		}, nil),
		{Name: "value", Type: normup.TypeString},
		{Name: "secretValue", Field: "secret_value", Type: normup.TypeInteger},
		{Name: "createdAt", Field: "created_at", Type: normup.TypeDate, NotNull: true},
	}, normup.WithTable(table))
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := store.Exec(ctx, `DROP TABLE IF EXISTS "`+table+`"`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := migration.AutoMigrate(ctx, store, migration.DialectPostgres, user); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Exec(context.Background(), `DROP TABLE IF EXISTS "`+table+`"`) })
	return user
}

func TestHealth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Health(ctx); err != nil {
		t.Fatalf("health failed: %v", err)
	}
}

func TestUpsertInsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	user := newUserModel(t, "e2e_users")

	first, err := user.Upsert(ctx, normup.Payload{"name": "Young Cat", "virtualValue": "999"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !first.Created || first.Record.Get("value") != "999" {
		t.Fatalf("insert outcome: created=%v values=%v", first.Created, first.Record.Values())
	}
	createdAt := first.Record.Get("createdAt").(time.Time)

	time.Sleep(10 * time.Millisecond)
	second, err := user.Upsert(ctx, normup.Payload{"name": "Young Cat", "virtualValue": "111"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if second.Created {
		t.Fatalf("second upsert must update")
	}
	if second.Record.Get("value") != "111" || second.Record.Get("id") != first.Record.Get("id") {
		t.Fatalf("update outcome: %v", second.Record.Values())
	}
	if !second.Record.Get("createdAt").(time.Time).Equal(createdAt) {
		t.Fatalf("created_at changed on update")
	}
	if !second.Record.Get("updatedAt").(time.Time).After(createdAt) {
		t.Fatalf("updatedAt not advanced")
	}
}

func TestUpsertSkipsValidation(t *testing.T) {
	// secretValue is nullable in storage, so the upsert goes through
	user := newUserModel(t, "e2e_users_novalidate")
	out, err := user.Upsert(context.Background(), normup.Payload{"name": "Grumpy Cat"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if out.Record.Get("secretValue") != nil {
		t.Fatalf("secret_value: %v", out.Record.Get("secretValue"))
	}
}

func TestUpsertConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	user := newUserModel(t, "e2e_users_concurrent")

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := user.Upsert(ctx, normup.Payload{"name": "race", "value": fmt.Sprint(i)})
			if err != nil {
				t.Errorf("upsert %d: %v", i, err)
				return
			}
			if out.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("exactly one insert expected, got %d", created)
	}
}

func TestUpsertConstraintFromStorage(t *testing.T) {
	ctx := context.Background()
	db, err := normup.New(store)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	strict := db.MustDefine("Strict", []normup.Attribute{
		{Name: "code", PrimaryKey: true},
		{Name: "label", NotNull: true},
	}, normup.WithTable("e2e_stricts"), normup.WithoutTimestamps())
	_ = store.Exec(ctx, `DROP TABLE IF EXISTS "e2e_stricts"`)
	if err := migration.AutoMigrate(ctx, store, "pgx", strict); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	defer func() { _ = store.Exec(ctx, `DROP TABLE IF EXISTS "e2e_stricts"`) }()

	_, err = strict.Upsert(ctx, normup.Payload{"code": "a"})
	if !normup.IsCode(err, normup.ErrCodeConstraint) {
		t.Fatalf("expected constraint error, got %v", err)
	}
	if !strings.Contains(err.Error(), "label") {
		t.Fatalf("error should name the column: %v", err)
	}
}

func TestUpsertInTransaction(t *testing.T) {
	ctx := context.Background()
	user := newUserModel(t, "e2e_users_tx")

	err := store.WithTx(ctx, func(tx *pgxstore.Store) error {
		db, err := normup.New(tx)
		if err != nil {
			return err
		}
		txUser := db.MustDefine("User", user.Schema().Attributes(), normup.WithTable(user.Table()))
		if _, err := txUser.Upsert(ctx, normup.Payload{"name": "tx"}); err != nil {
			return err
		}
		return fmt.Errorf("rollback please")
	})
	if err == nil || err.Error() != "rollback please" {
		t.Fatalf("tx error: %v", err)
	}
	out, err := user.Upsert(ctx, normup.Payload{"name": "tx"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !out.Created {
		t.Fatalf("rolled back row must not exist")
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func waitTCP(host, port string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	addr := net.JoinHostPort(host, port)
	for time.Now().Before(deadline) {
		c, err := net.DialTimeout("tcp", addr, 1*time.Second)
		if err == nil {
			_ = c.Close()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s:%s", host, port)
}
