package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInitialSchema(t *testing.T) {
	schema, err := GetInitialSchema()
	require.NoError(t, err)

	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS batches")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS messages")
	assert.Contains(t, schema, "idx_messages_batch_status_scheduled")
}

func TestGetInitialSchema_OverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "001_initial_schema.sql"), []byte("CREATE TABLE t (id INTEGER);"), 0600))

	originalDir := MigrationsDir
	MigrationsDir = dir
	defer func() { MigrationsDir = originalDir }()

	schema, err := GetInitialSchema()
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t (id INTEGER);", schema)
}

func TestGetInitialSchema_Missing(t *testing.T) {
	originalDir := MigrationsDir
	MigrationsDir = filepath.Join(t.TempDir(), "nope")
	defer func() { MigrationsDir = originalDir }()

	_, err := GetInitialSchema()
	assert.Error(t, err)
}
