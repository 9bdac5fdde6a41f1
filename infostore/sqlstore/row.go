package sqlstore

import (
	"go.lumeweb.com/infostore/codec"
	"go.lumeweb.com/infostore/core"
	"go.lumeweb.com/infostore/db/models"
	"gorm.io/datatypes"
)

func toModel(info *core.FileInfo) (*models.FileInfo, error) {
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

	parts, err := codec.EncodeParts(info.Parts)
	if err != nil {
		return nil, err
	}

	return &models.FileInfo{
		ID:           info.ID,
		Offset:       offset,
		Length:       length,
		Path:         info.Path,
		CreatedAt:    info.CreatedAt.UTC(),
		DeferredSize: info.DeferredSize,
		IsPartial:    info.IsPartial,
		IsFinal:      info.IsFinal,
		Parts:        datatypes.JSON(parts),
		Storage:      info.Storage,
		Metadata:     datatypes.JSON(metadata),
	}, nil
}

func fromModel(m *models.FileInfo) (*core.FileInfo, error) {
	offset, err := codec.Uint64(m.Offset)
	if err != nil {
		return nil, err
	}

	length, err := codec.Uint64Ptr(m.Length)
	if err != nil {
		return nil, err
	}

	metadata, err := codec.DecodeMetadata(m.Metadata)
	if err != nil {
		return nil, err
	}

	parts, err := codec.DecodeParts(m.Parts)
	if err != nil {
		return nil, err
	}

	return &core.FileInfo{
		ID:           m.ID,
		Offset:       offset,
		Length:       length,
		Path:         m.Path,
		CreatedAt:    m.CreatedAt.UTC(),
		DeferredSize: m.DeferredSize,
		IsPartial:    m.IsPartial,
		IsFinal:      m.IsFinal,
		Parts:        parts,
		Storage:      m.Storage,
		Metadata:     metadata,
	}, nil
}

// updates lists every column except id for an unconditional rewrite.
func updates(m *models.FileInfo) map[string]any {
	return map[string]any{
		"offset":        m.Offset,
		"length":        m.Length,
		"path":          m.Path,
		"created_at":    m.CreatedAt,
		"deferred_size": m.DeferredSize,
		"is_partial":    m.IsPartial,
		"is_final":      m.IsFinal,
		"parts":         m.Parts,
		"storage":       m.Storage,
		"metadata":      m.Metadata,
	}
}
