package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teapot/internal/config"
	"teapot/internal/database"
	"teapot/internal/logger"
)

// exerciseKV runs the behaviour every backend must share
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, found, err := kv.Get(ctx, KeyOrderItems)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set(ctx, KeyOrderItems, `[{"name":"Samosas","quantity":1}]`))
	v, found, err := kv.Get(ctx, KeyOrderItems)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"name":"Samosas","quantity":1}]`, v)

	require.NoError(t, kv.Set(ctx, KeyOrderItems, `[]`))
	v, _, err = kv.Get(ctx, KeyOrderItems)
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, kv.Delete(ctx, KeyOrderItems))
	_, found, err = kv.Get(ctx, KeyOrderItems)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Delete(ctx, "never-set"))
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teapot.db")
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	exerciseKV(t, s)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "teapot.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyOrders, `[{"id":"a"}]`))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	v, found, err := reopened.Get(ctx, KeyOrders)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":"a"}]`, v)
}

func TestWithPrefix_IsolatesSessions(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()

	alice := WithPrefix(base, "alice")
	bob := WithPrefix(base, "bob")

	exerciseKV(t, alice)

	require.NoError(t, alice.Set(ctx, KeyOrderItems, "a"))
	require.NoError(t, bob.Set(ctx, KeyOrderItems, "b"))

	v, _, _ := alice.Get(ctx, KeyOrderItems)
	assert.Equal(t, "a", v)
	v, _, _ = base.Get(ctx, "bob:"+KeyOrderItems)
	assert.Equal(t, "b", v)
}

// Integration test, runs only when TEAPOT_TEST_POSTGRES=1 and DB_* point at a scratch database.
func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	if os.Getenv("TEAPOT_TEST_POSTGRES") != "1" {
		t.Skip("skipping postgres integration test: TEAPOT_TEST_POSTGRES not set")
	}

	ctx := context.Background()
	cfg, err := config.Load("")
	require.NoError(t, err)

	db, err := database.New(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations(ctx))

	exerciseKV(t, WithPrefix(NewPostgres(db), "itest"))
}
