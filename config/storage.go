package config

import "errors"

var _ Defaults = (*StoreConfig)(nil)
var _ Validator = (*StoreConfig)(nil)

type StoreType string

const (
	StoreTypePostgres StoreType = "postgres"
	StoreTypeSQL      StoreType = "sql"
)

// StoreConfig selects the backend holding upload info. Only the section named
// by Type is used, but both are defaulted and validated.
type StoreConfig struct {
	Type     StoreType      `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	DB       DatabaseConfig `mapstructure:"db"`
}

func (s StoreConfig) Defaults() map[string]interface{} {
	return map[string]interface{}{
		"type": string(StoreTypePostgres),
	}
}

func (s StoreConfig) Validate() error {
	switch s.Type {
	case StoreTypePostgres, StoreTypeSQL:
		return nil
	default:
		return errors.New("core.store.type must be one of: postgres, sql")
	}
}
