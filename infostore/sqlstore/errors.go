package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"go.lumeweb.com/infostore/core"
	"go.lumeweb.com/infostore/db"
	"gorm.io/gorm"
)

// MySQL server error numbers.
const (
	mysqlErrDBAccess       = 1044
	mysqlErrAccessDenied   = 1045
	mysqlErrUnknownDB      = 1049
	mysqlErrTableExists    = 1050
	mysqlErrServerShutdown = 1053
	mysqlErrDuplicateKey   = 1062
)

func mapError(op, id string, err error) *core.StorageError {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return core.NewStorageError(core.ErrKeyNotFound, op, id, err)
	case errors.Is(err, gorm.ErrDuplicatedKey), isDuplicateKey(err):
		return core.NewStorageError(core.ErrKeyDuplicateRecord, op, id, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), db.IsLockError(err):
		return core.NewStorageError(core.ErrKeyStorageUnavailable, op, id, err)
	case isConnectionError(err):
		return core.NewStorageError(core.ErrKeyConnection, op, id, err)
	default:
		return core.NewStorageError(core.ErrKeyStorageUnavailable, op, id, err)
	}
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateKey
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	return false
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDBAccess, mysqlErrAccessDenied, mysqlErrUnknownDB, mysqlErrServerShutdown:
			return true
		default:
			return false
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrCantOpen || sqliteErr.Code == sqlite3.ErrNotADB
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// isConcurrentCreate reports a table created by another process while
// migrations were running.
func isConcurrentCreate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrTableExists
}
