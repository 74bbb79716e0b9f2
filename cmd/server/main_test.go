package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/caja-engine/caja"
	"github.com/warp/caja-engine/config"
	"github.com/warp/caja-engine/generic"
	"github.com/warp/caja-engine/migration"
	"github.com/warp/caja-engine/store/sqlite"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StoreDriver: config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "caja.db"),
	}
}

func TestRun_MigrateOnly(t *testing.T) {
	// GIVEN: A fresh SQLite file
	// WHEN: Running with -migrate-only
	// THEN: Migrations are flagged and the store is closed (WAL checkpointed)

	cfg := sqliteConfig(t)

	require.NoError(t, run(context.Background(), cfg, true, nil))
	assert.NoFileExists(t, cfg.SQLitePath+"-wal")

	s, err := sqlite.New(cfg.SQLitePath)
	require.NoError(t, err)
	defer s.Close()
	done, err := generic.HasFlag(context.Background(), s, migration.FlagCaja)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRun_MigrationFailureClosesStore(t *testing.T) {
	// GIVEN: A SQLite file whose caja collection is not an array of records
	// WHEN: Running
	// THEN: The migration error is returned and the store was closed first

	cfg := sqliteConfig(t)
	s, err := sqlite.New(cfg.SQLitePath)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), caja.CollectionKey, []byte(`{"codigo":"CAJ-AAAA"}`)))
	require.NoError(t, s.Close())

	err = run(context.Background(), cfg, false, nil)

	assert.ErrorIs(t, err, generic.ErrCorruptCollection)
	assert.NoFileExists(t, cfg.SQLitePath+"-wal")
}
