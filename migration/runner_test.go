package migration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerUpDownSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runner.db")
	r, err := NewRunner("testdata/migrations", "sqlite3://"+dbPath, nil)
	require.NoError(t, err)
	defer r.Close()

	v, dirty, err := r.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	require.NoError(t, r.Up())
	require.NoError(t, r.Up(), "no pending migrations is not an error")
	v, _, err = r.Version()
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	require.NoError(t, r.Down(1))
	assert.Error(t, r.Down(0))
}
