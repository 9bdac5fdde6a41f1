package postgres

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.lumeweb.com/infostore/core"
)

// mapError classifies a pgx error for op. The original error stays in the
// chain.
func mapError(op, id string, err error) *core.StorageError {
	if se := core.AsStorageError(err); se != nil {
		return core.NewStorageError(se.Key, op, id, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return core.NewStorageError(core.ErrKeyDuplicateRecord, op, id, err)
		case pgerrcode.IsConnectionException(pgErr.Code):
			return core.NewStorageError(core.ErrKeyConnection, op, id, err)
		default:
			return core.NewStorageError(core.ErrKeyStorageUnavailable, op, id, err)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewStorageError(core.ErrKeyStorageUnavailable, op, id, err)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return core.NewStorageError(core.ErrKeyConnection, op, id, err)
	}

	return core.NewStorageError(core.ErrKeyStorageUnavailable, op, id, err)
}

// isConcurrentCreate reports errors raised when another session creates the
// table between the existence check and the insert into the catalog.
func isConcurrentCreate(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == pgerrcode.DuplicateTable || pgErr.Code == pgerrcode.UniqueViolation
}
