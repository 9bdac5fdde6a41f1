package tusstore

import (
	"fmt"
	"maps"
	"slices"

	"github.com/samber/lo"
	"github.com/tus/tusd/v2/pkg/handler"
	"go.lumeweb.com/infostore/codec"
	"go.lumeweb.com/infostore/core"
)

// Keys of handler.FileInfo.Storage.
const (
	StorageTypeKey = "Type"
	StoragePathKey = "Path"
)

// FromTusInfo converts a tusd upload into a record. storage is used when the
// upload does not name its storage backend itself. CreatedAt is set to now.
func FromTusInfo(info handler.FileInfo, storage string) (*core.FileInfo, error) {
	if info.Offset < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", core.ErrSerialization, info.Offset)
	}

	var length *uint64
	if !info.SizeIsDeferred {
		if info.Size < 0 {
			return nil, fmt.Errorf("%w: negative size %d", core.ErrSerialization, info.Size)
		}
		length = lo.ToPtr(uint64(info.Size))
	}

	if tag := info.Storage[StorageTypeKey]; tag != "" {
		storage = tag
	}

	var path *string
	if p, ok := info.Storage[StoragePathKey]; ok {
		path = lo.ToPtr(p)
	}

	record := core.NewFileInfo(info.ID, length, path, storage, maps.Clone(map[string]string(info.MetaData)))
	record.Offset = uint64(info.Offset)
	record.DeferredSize = info.SizeIsDeferred
	record.IsPartial = info.IsPartial
	record.IsFinal = info.IsFinal
	record.Parts = slices.Clone(info.PartialUploads)

	return record, nil
}

// ToTusInfo converts a record into the form tusd hands to its hooks and
// responses.
func ToTusInfo(record *core.FileInfo) (handler.FileInfo, error) {
	offset, err := codec.Int64(record.Offset)
	if err != nil {
		return handler.FileInfo{}, err
	}

	info := handler.FileInfo{
		ID:             record.ID,
		Offset:         offset,
		SizeIsDeferred: record.DeferredSize,
		MetaData:       handler.MetaData(maps.Clone(record.Metadata)),
		IsPartial:      record.IsPartial,
		IsFinal:        record.IsFinal,
		PartialUploads: slices.Clone(record.Parts),
		Storage: map[string]string{
			StorageTypeKey: record.Storage,
		},
	}

	if record.Length != nil {
		size, err := codec.Int64(*record.Length)
		if err != nil {
			return handler.FileInfo{}, err
		}
		info.Size = size
	}

	if record.Path != nil {
		info.Storage[StoragePathKey] = *record.Path
	}

	if info.MetaData == nil {
		info.MetaData = make(handler.MetaData)
	}

	return info, nil
}
