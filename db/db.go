package db

import (
	"fmt"
	"strings"

	"github.com/go-gorm/caches/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.lumeweb.com/infostore/config"
	"go.lumeweb.com/infostore/core"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase opens the sql database described by cfg. MySQL is pinged on
// open, sqlite files are created on first use.
func NewDatabase(cfg config.DatabaseConfig, logger *core.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         newLogger(logger.Logger, logger.Level()),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error

	switch cfg.Type {
	case config.DatabaseTypeMySQL:
		db, err = openMySQLDatabase(cfg, gormConfig)
	case config.DatabaseTypeSQLite:
		db, err = openSQLiteDatabase(cfg.File, gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConns
	if cfg.Type == config.DatabaseTypeSQLite {
		// sqlite has a single writer; extra connections only add lock errors.
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)

	cacher, err := getCacher(cfg, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if cacher != nil {
		cache := &caches.Caches{Conf: &caches.Config{
			Cacher: cacher,
		}}
		if err := db.Use(cache); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	return db, nil
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	dsn := mysql.NewConfig()
	dsn.User = cfg.Username
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsn.DBName = cfg.Name
	dsn.ParseTime = true
	// Updates that rewrite a row with identical values must still count it as
	// matched, otherwise they would be reported as not found.
	dsn.ClientFoundRows = true
	dsn.Params = map[string]string{
		"charset": cfg.Charset,
	}

	return dsn.FormatDSN()
}

func openMySQLDatabase(cfg config.DatabaseConfig, gormConfig *gorm.Config) (*gorm.DB, error) {
	return gorm.Open(gormmysql.Open(mysqlDSN(cfg)), gormConfig)
}

func openSQLiteDatabase(file string, gormConfig *gorm.Config) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(file), gormConfig)
}

func getCacher(cfg config.DatabaseConfig, logger *core.Logger) (caches.Cacher, error) {
	switch cfg.Cache.Mode {
	case config.CacheModeNone, "":
		return nil, nil
	case config.CacheModeMemory:
		if cfg.Type != config.DatabaseTypeSQLite {
			return nil, fmt.Errorf("memory query cache is not supported for %s, use redis", cfg.Type)
		}
		logger.Warn("memory query cache is local to this process, other processes writing the same database will not invalidate it",
			zap.String("file", cfg.File))
		return sharedMemoryCacher(cfg.File), nil
	case config.CacheModeRedis:
		rcfg, ok := cfg.Cache.Options.(config.RedisConfig)
		if !ok {
			return nil, fmt.Errorf("invalid redis cache options: %T", cfg.Cache.Options)
		}
		logger.Debug("using redis query cache", zap.String("address", rcfg.Address))
		return newRedisCacher(redis.NewClient(&redis.Options{
			Addr:     rcfg.Address,
			Password: rcfg.Password,
			DB:       rcfg.DB,
		}), defaultCacheTTL), nil
	default:
		return nil, fmt.Errorf("invalid cache mode: %s", cfg.Cache.Mode)
	}
}

// IsLockError checks if the given error is a database lock error
func IsLockError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "deadlock") ||
		strings.Contains(errMsg, "lock wait timeout") ||
		strings.Contains(errMsg, "database is locked") ||
		strings.Contains(errMsg, "database table is locked") ||
		strings.Contains(errMsg, "too many connections")
}
