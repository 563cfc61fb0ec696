package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles_Sorted(t *testing.T) {
	files, err := MigrationFiles()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"001_kv_store.sql",
		"002_kv_store_updated_at_idx.sql",
	}, files)
}

func TestMigrationFiles_Embedded(t *testing.T) {
	content, err := migrationsFS.ReadFile("migrations/001_kv_store.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS kv_store")
}
