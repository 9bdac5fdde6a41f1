// Package sqlstore keeps upload info in a sqlite or mysql table through gorm.
package sqlstore

import (
	"context"

	"go.lumeweb.com/infostore/config"
	"go.lumeweb.com/infostore/core"
	"go.lumeweb.com/infostore/db"
	"go.lumeweb.com/infostore/db/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opOpen       = "open"
	opPrepare    = "prepare"
	opSetInfo    = "set_info"
	opGetInfo    = "get_info"
	opRemoveInfo = "remove_info"
	opPing       = "ping"
	opClose      = "close"
)

var _ core.InfoStorage = (*Store)(nil)

type Store struct {
	db     *gorm.DB
	table  string
	logger *core.Logger
}

func New(cfg config.DatabaseConfig, logger *core.Logger) (*Store, error) {
	gdb, err := db.NewDatabase(cfg, logger)
	if err != nil {
		logger.Error("failed to open database", zap.String("type", string(cfg.Type)), zap.Error(err))
		return nil, mapOpenError(err)
	}

	return NewWithDB(gdb, cfg.Table, logger), nil
}

// NewWithDB builds a store on an open database. Close closes it.
func NewWithDB(gdb *gorm.DB, table string, logger *core.Logger) *Store {
	return &Store{
		db:     gdb,
		table:  table,
		logger: logger,
	}
}

func mapOpenError(err error) error {
	mapped := mapError(opOpen, "", err)
	if mapped.IsErrorType(core.ErrKeyStorageUnavailable) {
		return core.NewStorageError(core.ErrKeyConnection, opOpen, "", err)
	}
	return mapped
}

func (s *Store) query(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func (s *Store) Prepare(ctx context.Context) error {
	err := s.query(ctx).AutoMigrate(models.GetModels()...)
	if err == nil {
		s.logger.Debug("prepared upload info table", zap.String("table", s.table))
		return nil
	}

	if isConcurrentCreate(err) {
		s.logger.Debug("table created concurrently", zap.String("table", s.table))
		return nil
	}

	s.logger.Error("failed to prepare upload info table", zap.String("table", s.table), zap.Error(err))

	mapped := mapError(opPrepare, "", err)
	if mapped.IsErrorType(core.ErrKeyStorageUnavailable) {
		return mapped
	}
	return core.NewStorageError(core.ErrKeyStorageUnavailable, opPrepare, "", mapped)
}

func (s *Store) SetInfo(ctx context.Context, info *core.FileInfo, create bool) error {
	if info == nil {
		return core.NewStorageError(core.ErrKeySerialization, opSetInfo, "", nil, "upload info is nil")
	}

	m, err := toModel(info)
	if err != nil {
		s.logger.Error("failed to encode upload info", zap.String("id", info.ID), zap.Error(err))
		return core.NewStorageError(core.ErrKeySerialization, opSetInfo, info.ID, err)
	}

	if create {
		if err := s.query(ctx).Create(m).Error; err != nil {
			return s.fail(opSetInfo, info.ID, err)
		}
		return nil
	}

	result := s.query(ctx).Where("id = ?", m.ID).Updates(updates(m))
	if result.Error != nil {
		return s.fail(opSetInfo, info.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		return s.notFound(opSetInfo, info.ID)
	}

	return nil
}

func (s *Store) GetInfo(ctx context.Context, id string) (*core.FileInfo, error) {
	var m models.FileInfo
	if err := s.query(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		mapped := mapError(opGetInfo, id, err)
		if mapped.IsErrorType(core.ErrKeyNotFound) {
			return nil, s.notFound(opGetInfo, id)
		}
		return nil, s.fail(opGetInfo, id, err)
	}

	info, err := fromModel(&m)
	if err != nil {
		s.logger.Error("failed to decode upload info", zap.String("id", id), zap.Error(err))
		return nil, core.NewStorageError(core.ErrKeySerialization, opGetInfo, id, err)
	}

	return info, nil
}

func (s *Store) RemoveInfo(ctx context.Context, id string) error {
	result := s.query(ctx).Where("id = ?", id).Delete(&models.FileInfo{})
	if result.Error != nil {
		return s.fail(opRemoveInfo, id, result.Error)
	}

	if result.RowsAffected == 0 {
		return s.notFound(opRemoveInfo, id)
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.fail(opPing, "", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		s.logger.Error("database ping failed", zap.Error(err))
		return core.NewStorageError(core.ErrKeyConnection, opPing, "", err)
	}

	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.fail(opClose, "", err)
	}

	return sqlDB.Close()
}

func (s *Store) fail(op, id string, err error) error {
	mapped := mapError(op, id, err)
	s.logger.Error("upload info operation failed",
		zap.String("op", op),
		zap.String("id", id),
		zap.String("kind", string(mapped.Key)),
		zap.Error(err))
	return mapped
}

func (s *Store) notFound(op, id string) error {
	s.logger.Debug("upload info not found", zap.String("op", op), zap.String("id", id))
	return core.NewStorageError(core.ErrKeyNotFound, op, id, nil)
}
