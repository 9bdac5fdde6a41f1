// Package infostore builds the configured upload info backend.
package infostore

import (
	"context"
	"fmt"

	"go.lumeweb.com/infostore/config"
	"go.lumeweb.com/infostore/core"
	"go.lumeweb.com/infostore/db"
	"go.lumeweb.com/infostore/infostore/postgres"
	"go.lumeweb.com/infostore/infostore/sqlstore"
	"go.uber.org/zap"
)

// Pinger is implemented by backends that can check their connection without
// touching any record.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Pinger = (*postgres.Store)(nil)
	_ Pinger = (*sqlstore.Store)(nil)
)

// New builds the backend selected by cfg.Type. The caller owns the returned
// storage and must Close it.
func New(ctx context.Context, cfg config.StoreConfig, logger *core.Logger) (core.InfoStorage, error) {
	switch cfg.Type {
	case config.StoreTypePostgres, "":
		security, err := db.NewTransportSecurity(cfg.Postgres.TLS)
		if err != nil {
			return nil, err
		}

		logger.Debug("using postgres upload info storage",
			zap.String("schema", cfg.Postgres.Schema),
			zap.String("table", cfg.Postgres.Table),
			zap.String("transport_security", security.Name()))

		return postgres.New(ctx, cfg.Postgres, security, logger)
	case config.StoreTypeSQL:
		logger.Debug("using sql upload info storage",
			zap.String("type", string(cfg.DB.Type)),
			zap.String("table", cfg.DB.Table))

		return sqlstore.New(cfg.DB, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
