package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/epgnow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver:          DriverSQLite,
		DSN:             filepath.Join(t.TempDir(), "data", "epg.db"),
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		LogLevel:        "silent",
	}
}

func TestNew_SQLite(t *testing.T) {
	cfg := testConfig(t)

	db, err := New(cfg, nil)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, DriverSQLite, db.Driver())

	_, err = os.Stat(filepath.Dir(cfg.DSN))
	assert.NoError(t, err, "database directory should be created")
}

func TestNew_InvalidDriver(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "invalid", DSN: "x"}, nil)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNew_InaccessibleLocation(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := testConfig(t)
	cfg.DSN = filepath.Join(blocker, "epg.db")

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestDB_Close(t *testing.T) {
	db, err := New(testConfig(t), nil)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}

func TestDB_Transaction(t *testing.T) {
	db, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer db.Close()

	type kv struct {
		Key   string `gorm:"primaryKey"`
		Value string
	}
	require.NoError(t, db.AutoMigrate(&kv{}))

	ctx := context.Background()
	err = db.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&kv{Key: "a", Value: "1"}).Error
	})
	require.NoError(t, err)

	err = db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&kv{Key: "b", Value: "2"}).Error; err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, db.Model(&kv{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "rolled back insert must not persist")
}

func TestDB_Stats(t *testing.T) {
	db, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer db.Close()

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats["max_open_connections"])
}

func TestEnsureSQLiteDir(t *testing.T) {
	assert.NoError(t, ensureSQLiteDir(":memory:"))
	assert.NoError(t, ensureSQLiteDir("file::memory:?cache=shared"))
	assert.NoError(t, ensureSQLiteDir("epg.db"))

	dir := filepath.Join(t.TempDir(), "nested", "dir")
	require.NoError(t, ensureSQLiteDir("file:"+filepath.Join(dir, "epg.db")+"?mode=rwc"))
	_, err := os.Stat(dir)
	assert.NoError(t, err)
}
