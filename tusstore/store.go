// Package tusstore keeps tusd upload state in a core.InfoStorage.
package tusstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tus/tusd/v2/pkg/handler"
	"go.lumeweb.com/infostore/core"
	"go.uber.org/zap"
)

type Store struct {
	storage core.InfoStorage
	tag     string
	logger  *core.Logger
}

// New wraps storage. tag is recorded as the storage backend of uploads that
// do not name one.
func New(storage core.InfoStorage, tag string, logger *core.Logger) *Store {
	return &Store{
		storage: storage,
		tag:     tag,
		logger:  logger,
	}
}

// Create records a new upload and returns it as stored. An empty id is
// replaced with a random one.
func (s *Store) Create(ctx context.Context, info handler.FileInfo) (handler.FileInfo, error) {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}

	record, err := FromTusInfo(info, s.tag)
	if err != nil {
		return handler.FileInfo{}, err
	}

	if err := s.storage.SetInfo(ctx, record, true); err != nil {
		return handler.FileInfo{}, s.translate(err)
	}

	return ToTusInfo(record)
}

func (s *Store) Get(ctx context.Context, id string) (handler.FileInfo, error) {
	record, err := s.storage.GetInfo(ctx, id)
	if err != nil {
		return handler.FileInfo{}, s.translate(err)
	}

	return ToTusInfo(record)
}

func (s *Store) SetOffset(ctx context.Context, id string, offset int64) error {
	if offset < 0 {
		return handler.ErrInvalidOffset
	}

	return s.update(ctx, id, func(record *core.FileInfo) error {
		if record.Length != nil && uint64(offset) > *record.Length {
			return handler.ErrSizeExceeded
		}
		record.Offset = uint64(offset)
		return nil
	})
}

// DeclareLength fixes the size of an upload created with a deferred length.
func (s *Store) DeclareLength(ctx context.Context, id string, length int64) error {
	if length < 0 {
		return handler.ErrInvalidUploadLength
	}

	return s.update(ctx, id, func(record *core.FileInfo) error {
		if record.Offset > uint64(length) {
			return handler.ErrInvalidUploadLength
		}
		size := uint64(length)
		record.Length = &size
		record.DeferredSize = false
		return nil
	})
}

func (s *Store) Terminate(ctx context.Context, id string) error {
	if err := s.storage.RemoveInfo(ctx, id); err != nil {
		return s.translate(err)
	}
	return nil
}

// Concat marks finalID as the concatenation of partIDs, in order. Every part
// must be a finished partial upload.
func (s *Store) Concat(ctx context.Context, finalID string, partIDs []string) error {
	var offset uint64
	for _, id := range partIDs {
		part, err := s.storage.GetInfo(ctx, id)
		if err != nil {
			return s.translate(err)
		}
		if !part.IsPartial {
			return handler.ErrInvalidConcat
		}
		if part.Length == nil || part.Offset != *part.Length {
			return handler.ErrUploadNotFinished
		}
		offset += part.Offset
	}

	return s.update(ctx, finalID, func(record *core.FileInfo) error {
		if record.IsPartial {
			return handler.ErrInvalidConcat
		}
		record.IsFinal = true
		record.Parts = append([]string(nil), partIDs...)
		record.Offset = offset
		if record.Length == nil {
			record.Length = &offset
			record.DeferredSize = false
		}
		return nil
	})
}

func (s *Store) update(ctx context.Context, id string, apply func(record *core.FileInfo) error) error {
	record, err := s.storage.GetInfo(ctx, id)
	if err != nil {
		return s.translate(err)
	}

	if err := apply(record); err != nil {
		return err
	}

	if err := s.storage.SetInfo(ctx, record, false); err != nil {
		return s.translate(err)
	}

	return nil
}

// translate maps a missing record to tusd's not found error. Other errors are
// returned as they are.
func (s *Store) translate(err error) error {
	if errors.Is(err, core.ErrNotFound) {
		s.logger.Debug("upload not found", zap.Error(err))
		return handler.ErrNotFound
	}

	s.logger.Error("upload info storage failed", zap.Error(err))
	return err
}
