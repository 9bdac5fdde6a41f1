package core

import "context"

// InfoStorage persists upload info. Each call is a single auto-committed
// statement; callers are responsible for having at most one writer per id.
type InfoStorage interface {
	// Prepare creates the backing table if it is missing. It is safe to call
	// repeatedly and from several processes at once.
	Prepare(ctx context.Context) error
	// SetInfo inserts info when create is true and fails with ErrDuplicateRecord
	// if the id exists. Otherwise it rewrites the stored record and fails with
	// ErrNotFound if no record has that id.
	SetInfo(ctx context.Context, info *FileInfo, create bool) error
	GetInfo(ctx context.Context, id string) (*FileInfo, error)
	RemoveInfo(ctx context.Context, id string) error
	Close() error
}
