package postgres

import (
	"time"

	"go.lumeweb.com/infostore/codec"
	"go.lumeweb.com/infostore/core"
)

// columns in the order used by every statement. id is always first.
var columns = []string{
	"id",
	"offset",
	"length",
	"path",
	"created_at",
	"deferred_size",
	"is_partial",
	"is_final",
	"parts",
	"storage",
	"metadata",
}

type row struct {
	ID           string
	Offset       int64
	Length       *int64
	Path         *string
	CreatedAt    time.Time
	DeferredSize bool
	IsPartial    bool
	IsFinal      bool
	Parts        []string
	Storage      string
	Metadata     []byte
}

func encodeRow(info *core.FileInfo) (*row, error) {
	offset, err := codec.Int64(info.Offset)
	if err != nil {
		return nil, err
	}

	length, err := codec.Int64Ptr(info.Length)
	if err != nil {
		return nil, err
	}

	metadata, err := codec.EncodeMetadata(info.Metadata)
	if err != nil {
		return nil, err
	}

	return &row{
		ID:           info.ID,
		Offset:       offset,
		Length:       length,
		Path:         info.Path,
		CreatedAt:    info.CreatedAt,
		DeferredSize: info.DeferredSize,
		IsPartial:    info.IsPartial,
		IsFinal:      info.IsFinal,
		Parts:        codec.Parts(info.Parts),
		Storage:      info.Storage,
		Metadata:     metadata,
	}, nil
}

// args returns the bind values in column order.
func (r *row) args() []any {
	return []any{
		r.ID,
		r.Offset,
		r.Length,
		r.Path,
		r.CreatedAt,
		r.DeferredSize,
		r.IsPartial,
		r.IsFinal,
		r.Parts,
		r.Storage,
		r.Metadata,
	}
}

// dest returns scan targets in column order.
func (r *row) dest() []any {
	return []any{
		&r.ID,
		&r.Offset,
		&r.Length,
		&r.Path,
		&r.CreatedAt,
		&r.DeferredSize,
		&r.IsPartial,
		&r.IsFinal,
		&r.Parts,
		&r.Storage,
		&r.Metadata,
	}
}

func (r *row) decode() (*core.FileInfo, error) {
	offset, err := codec.Uint64(r.Offset)
	if err != nil {
		return nil, err
	}

	length, err := codec.Uint64Ptr(r.Length)
	if err != nil {
		return nil, err
	}

	metadata, err := codec.DecodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}

	return &core.FileInfo{
		ID:           r.ID,
		Offset:       offset,
		Length:       length,
		Path:         r.Path,
		CreatedAt:    r.CreatedAt.UTC(),
		DeferredSize: r.DeferredSize,
		IsPartial:    r.IsPartial,
		IsFinal:      r.IsFinal,
		Parts:        codec.Parts(r.Parts),
		Storage:      r.Storage,
		Metadata:     metadata,
	}, nil
}
