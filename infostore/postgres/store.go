// Package postgres keeps upload info in a PostgreSQL table.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.lumeweb.com/infostore/config"
	"go.lumeweb.com/infostore/core"
	"go.lumeweb.com/infostore/db"
	"go.uber.org/zap"
)

const (
	opPrepare    = "prepare"
	opSetInfo    = "set_info"
	opGetInfo    = "get_info"
	opRemoveInfo = "remove_info"
)

var _ core.InfoStorage = (*Store)(nil)

type Store struct {
	pool    *db.Pool
	logger  *core.Logger
	queries queries
}

// New builds a store with its own pool. No connection is made until the
// first operation.
func New(ctx context.Context, cfg config.PostgresConfig, security db.TransportSecurity, logger *core.Logger) (*Store, error) {
	pool, err := db.NewPool(ctx, cfg, security, logger)
	if err != nil {
		return nil, err
	}

	return NewWithPool(pool, cfg.Schema, cfg.Table, logger), nil
}

// NewWithPool builds a store on an existing pool. Close closes the pool.
func NewWithPool(pool *db.Pool, schema, table string, logger *core.Logger) *Store {
	return &Store{
		pool:    pool,
		logger:  logger,
		queries: newQueries(schema, table),
	}
}

func (s *Store) Prepare(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return s.prepareError(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, s.queries.create); err != nil {
		if isConcurrentCreate(err) {
			s.logger.Debug("table created concurrently", zap.String("table", s.queries.table))
			return nil
		}
		return s.prepareError(err)
	}

	s.logger.Debug("prepared upload info table", zap.String("table", s.queries.table))
	return nil
}

// prepareError reports every prepare failure as unavailable storage, keeping
// the underlying classification (e.g. a connection error) in the chain.
func (s *Store) prepareError(err error) error {
	mapped := mapError(opPrepare, "", err)
	s.logger.Error("failed to prepare upload info table", zap.String("table", s.queries.table), zap.Error(err))

	if mapped.IsErrorType(core.ErrKeyStorageUnavailable) {
		return mapped
	}
	return core.NewStorageError(core.ErrKeyStorageUnavailable, opPrepare, "", mapped)
}

func (s *Store) SetInfo(ctx context.Context, info *core.FileInfo, create bool) error {
	if info == nil {
		return core.NewStorageError(core.ErrKeySerialization, opSetInfo, "", nil, "upload info is nil")
	}

	r, err := encodeRow(info)
	if err != nil {
		s.logger.Error("failed to encode upload info", zap.String("id", info.ID), zap.Error(err))
		return core.NewStorageError(core.ErrKeySerialization, opSetInfo, info.ID, err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return s.fail(opSetInfo, info.ID, err)
	}
	defer conn.Release()

	if create {
		if _, err := conn.Exec(ctx, s.queries.insert, r.args()...); err != nil {
			return s.fail(opSetInfo, info.ID, err)
		}
		return nil
	}

	// The update is unconditional, so zero affected rows is the only signal
	// that the record does not exist.
	tag, err := conn.Exec(ctx, s.queries.update, r.args()...)
	if err != nil {
		return s.fail(opSetInfo, info.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return s.notFound(opSetInfo, info.ID)
	}

	return nil
}

func (s *Store) GetInfo(ctx context.Context, id string) (*core.FileInfo, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, s.fail(opGetInfo, id, err)
	}
	defer conn.Release()

	var r row
	if err := conn.QueryRow(ctx, s.queries.get, id).Scan(r.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.notFound(opGetInfo, id)
		}
		return nil, s.fail(opGetInfo, id, err)
	}

	info, err := r.decode()
	if err != nil {
		s.logger.Error("failed to decode upload info", zap.String("id", id), zap.Error(err))
		return nil, core.NewStorageError(core.ErrKeySerialization, opGetInfo, id, err)
	}

	return info, nil
}

func (s *Store) RemoveInfo(ctx context.Context, id string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return s.fail(opRemoveInfo, id, err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, s.queries.remove, id)
	if err != nil {
		return s.fail(opRemoveInfo, id, err)
	}

	if tag.RowsAffected() == 0 {
		return s.notFound(opRemoveInfo, id)
	}

	return nil
}

// Ping checks that a connection can be acquired and used.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
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
