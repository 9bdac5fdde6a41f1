package core

import (
	"errors"
	"fmt"
)

type StorageErrorType string

const (
	ErrKeyConnection         StorageErrorType = "ErrConnection"
	ErrKeyNotFound           StorageErrorType = "ErrNotFound"
	ErrKeyDuplicateRecord    StorageErrorType = "ErrDuplicateRecord"
	ErrKeySerialization      StorageErrorType = "ErrSerialization"
	ErrKeyStorageUnavailable StorageErrorType = "ErrStorageUnavailable"
)

var defaultStorageErrorMessages = map[StorageErrorType]string{
	ErrKeyConnection:         "could not establish a database connection",
	ErrKeyNotFound:           "upload info not found",
	ErrKeyDuplicateRecord:    "upload info already exists",
	ErrKeySerialization:      "upload info could not be encoded or decoded",
	ErrKeyStorageUnavailable: "info storage is unavailable",
}

// Sentinels for errors.Is. They match any StorageError of the same key,
// whatever its operation or id.
var (
	ErrConnection         = &StorageError{Key: ErrKeyConnection}
	ErrNotFound           = &StorageError{Key: ErrKeyNotFound}
	ErrDuplicateRecord    = &StorageError{Key: ErrKeyDuplicateRecord}
	ErrSerialization      = &StorageError{Key: ErrKeySerialization}
	ErrStorageUnavailable = &StorageError{Key: ErrKeyStorageUnavailable}
)

type StorageError struct {
	Key     StorageErrorType
	Op      string // prepare, set_info, get_info, remove_info, ...
	ID      string // upload id, empty when the operation has none
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	message := e.Message
	if message == "" {
		message = defaultStorageErrorMessages[e.Key]
	}

	prefix := e.Op
	if e.ID != "" {
		prefix = fmt.Sprintf("%s %s", e.Op, e.ID)
	}
	if prefix != "" {
		message = fmt.Sprintf("%s: %s", prefix, message)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", message, e.Err)
	}
	return message
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return t.Key == e.Key && t.Op == "" && t.ID == ""
}

func (e *StorageError) IsErrorType(key StorageErrorType) bool {
	return e.Key == key
}

func NewStorageError(key StorageErrorType, op, id string, err error, customMessage ...string) *StorageError {
	message, exists := defaultStorageErrorMessages[key]
	if !exists {
		message = "an unknown storage error occurred"
	}
	if len(customMessage) > 0 {
		message = customMessage[0]
	}
	return &StorageError{
		Key:     key,
		Op:      op,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// AsStorageError returns the outermost StorageError in err's chain, or nil.
func AsStorageError(err error) *StorageError {
	var se *StorageError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
