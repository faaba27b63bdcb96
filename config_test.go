package normup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnString_Defaults(t *testing.T) {
	c := &Config{Database: "postgres", Username: "u", Password: "p", ApplicationName: "app"}
	s := c.ConnString()
	if !strings.Contains(s, "host=localhost") || !strings.Contains(s, "port=5432") || !strings.Contains(s, "sslmode=disable") {
		t.Fatalf("defaults missing: %s", s)
	}
}

func TestConnString_Custom(t *testing.T) {
	c := &Config{Host: "h", Port: 5555, SSLMode: "require", Database: "d", Username: "u", Password: "p", ApplicationName: "app", ConnectTimeout: 3 * time.Second}
	s := c.ConnString()
	if !strings.Contains(s, "host=h") || !strings.Contains(s, "port=5555") || !strings.Contains(s, "sslmode=require") || !strings.Contains(s, "connect_timeout=3") {
		t.Fatalf("custom mismatch: %s", s)
	}
}

func TestConnString_DSNWins(t *testing.T) {
	c := &Config{DSN: "file::memory:", Host: "ignored"}
	assert.Equal(t, "file::memory:", c.ConnString())
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	content := "NORMUP_DIALECT=sqlite3\nNORMUP_DSN=file:test.db\nNORMUP_MAX_CONNECTIONS=7\nNORMUP_CIRCUIT_OPEN_TIMEOUT=2s\n"
	require.NoError(t, os.WriteFile(env, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"NORMUP_DIALECT", "NORMUP_DSN", "NORMUP_MAX_CONNECTIONS", "NORMUP_CIRCUIT_OPEN_TIMEOUT"} {
			os.Unsetenv(k)
		}
	})
	// process environment beats the file
	t.Setenv("NORMUP_STRICT_ATTRIBUTES", "true")

	cfg, err := LoadConfig(filepath.Join(dir, "missing.env"), env)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Dialect)
	assert.Equal(t, "file:test.db", cfg.DSN)
	assert.Equal(t, int32(7), cfg.MaxConnections)
	assert.Equal(t, 2*time.Second, cfg.CircuitOpenTimeout)
	assert.True(t, cfg.StrictAttributes)
	assert.Equal(t, "normup", cfg.ApplicationName)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("NORMUP_DIALECT", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.Dialect)
}

func TestLoadConfig_BadValue(t *testing.T) {
	t.Setenv("NORMUP_PORT", "five")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NORMUP_PORT")
}

func TestNewAppliesConfig(t *testing.T) {
	db, err := New(&fakeQI{}, WithConfig(&Config{StrictAttributes: true, CircuitBreakerEnabled: true}))
	require.NoError(t, err)
	assert.True(t, db.strict)
	require.NotNil(t, db.breaker)
	assert.Equal(t, 5, db.breaker.cfg.failureThreshold)
	assert.Equal(t, 30*time.Second, db.breaker.cfg.openTimeout)
}
