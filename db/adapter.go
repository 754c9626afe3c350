package db

import (
	"fmt"

	"github.com/kasuganosora/modforge/config"
	dbmysql "github.com/kasuganosora/modforge/db/mysql"
	dbsqlite "github.com/kasuganosora/modforge/db/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured database mode. SQL logs go to
// log; a nil log silences them.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gl := gormlogger.Default.LogMode(gormlogger.Silent)
	if log != nil {
		gl = NewLogger(log, cfg.SlowQuery)
		if cfg.LogSQL {
			gl = gl.LogMode(gormlogger.Info)
		}
	}
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath, gl)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife, gl)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
