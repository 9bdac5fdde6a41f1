package config

import (
	"errors"
)

var _ Defaults = (*DatabaseConfig)(nil)
var _ Validator = (*DatabaseConfig)(nil)

type DatabaseType string

const (
	DatabaseTypeSQLite DatabaseType = "sqlite"
	DatabaseTypeMySQL  DatabaseType = "mysql"
)

type DatabaseConfig struct {
	Type     DatabaseType `mapstructure:"type"`
	File     string       `mapstructure:"file"`
	Charset  string       `mapstructure:"charset"`
	Host     string       `mapstructure:"host"`
	Name     string       `mapstructure:"name"`
	Password string       `mapstructure:"password"`
	Port     int          `mapstructure:"port"`
	Username string       `mapstructure:"username"`
	Table    string       `mapstructure:"table"`
	MaxConns int          `mapstructure:"max_conns"`
	Cache    CacheConfig  `mapstructure:"cache"`
}

func (d DatabaseConfig) Validate() error {
	switch d.Type {
	case DatabaseTypeSQLite:
		if d.File == "" {
			return errors.New("core.store.db.file is required")
		}
	case DatabaseTypeMySQL:
		if d.Host == "" {
			return errors.New("core.store.db.host is required")
		}
		if d.Port == 0 {
			return errors.New("core.store.db.port is required")
		}
		if d.Username == "" {
			return errors.New("core.store.db.username is required")
		}
		if d.Name == "" {
			return errors.New("core.store.db.name is required")
		}
	default:
		return errors.New("core.store.db.type must be one of: sqlite, mysql")
	}

	if d.Table == "" {
		return errors.New("core.store.db.table is required")
	}
	if d.MaxConns <= 0 {
		return errors.New("core.store.db.max_conns must be positive")
	}
	if d.Cache.Mode == CacheModeMemory && d.Type != DatabaseTypeSQLite {
		return errors.New("core.store.db.cache.mode memory is only supported for sqlite, use redis")
	}

	return nil
}

func (d DatabaseConfig) Defaults() map[string]interface{} {
	def := map[string]interface{}{
		"type":      string(DatabaseTypeSQLite),
		"host":      "localhost",
		"charset":   "utf8mb4",
		"port":      3306,
		"name":      "infostore",
		"table":     "file_info",
		"max_conns": 100,
	}

	if d.Type == DatabaseTypeSQLite || d.Type == "" {
		def["file"] = "infostore.db"
	}

	return def
}
