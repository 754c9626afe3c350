package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kasuganosora/modforge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpen_SQLite(t *testing.T) {
	gdb, err := Open(config.DatabaseConfig{
		Mode:       ModeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	}, nil)
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	require.NoError(t, sqlDB.Close())
}

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: "embedded_xml"}, nil)
	assert.ErrorContains(t, err, "unknown mode")
}

type row struct {
	ID   uint
	Name string
}

func TestLogger_RoutesToZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gdb, err := Open(config.DatabaseConfig{
		Mode:       ModeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "log.db"),
		LogSQL:     true,
	}, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&row{}))

	var r row
	err = gdb.First(&r, 42).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.FilterMessage("query failed").Len(), "missing record is not a failure")
	assert.NotZero(t, logs.FilterMessage("query").Len())

	require.Error(t, gdb.Exec("SELECT * FROM missing_table").Error)
	assert.Equal(t, 1, logs.FilterMessage("query failed").Len())
}

func TestLogger_SlowQuery(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLogger(zap.New(core), time.Nanosecond)
	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Equal(t, 1, logs.FilterMessage("slow query").Len())
	assert.Equal(t, "SELECT 1", logs.All()[0].ContextMap()["sql"])

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 2", 1 }, nil)
	assert.Equal(t, 1, logs.Len())
}
