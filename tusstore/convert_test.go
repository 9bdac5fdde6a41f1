package tusstore

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tus/tusd/v2/pkg/handler"
	"go.lumeweb.com/infostore/core"
)

func TestFromTusInfo(t *testing.T) {
	record, err := FromTusInfo(handler.FileInfo{
		ID:             "abc",
		Size:           100,
		Offset:         40,
		MetaData:       handler.MetaData{"filename": "a.txt"},
		IsFinal:        true,
		PartialUploads: []string{"b", "a"},
		Storage:        map[string]string{StorageTypeKey: "s3", StoragePathKey: "bucket/abc"},
	}, "local")
	require.NoError(t, err)

	assert.Equal(t, "abc", record.ID)
	assert.Equal(t, uint64(40), record.Offset)
	assert.Equal(t, lo.ToPtr(uint64(100)), record.Length)
	assert.Equal(t, lo.ToPtr("bucket/abc"), record.Path)
	assert.Equal(t, "s3", record.Storage)
	assert.Equal(t, map[string]string{"filename": "a.txt"}, record.Metadata)
	assert.Equal(t, []string{"b", "a"}, record.Parts)
	assert.True(t, record.IsFinal)
	assert.False(t, record.DeferredSize)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestFromTusInfoDeferred(t *testing.T) {
	record, err := FromTusInfo(handler.FileInfo{ID: "abc", SizeIsDeferred: true}, "local")
	require.NoError(t, err)

	assert.Nil(t, record.Length)
	assert.Nil(t, record.Path)
	assert.True(t, record.DeferredSize)
	assert.Equal(t, "local", record.Storage)
	assert.NotNil(t, record.Metadata)
}

func TestFromTusInfoRejectsNegative(t *testing.T) {
	_, err := FromTusInfo(handler.FileInfo{ID: "abc", Offset: -1}, "local")
	require.ErrorIs(t, err, core.ErrSerialization)

	_, err = FromTusInfo(handler.FileInfo{ID: "abc", Size: -1}, "local")
	require.ErrorIs(t, err, core.ErrSerialization)
}

func TestToTusInfo(t *testing.T) {
	record := core.NewFileInfo("abc", lo.ToPtr(uint64(100)), lo.ToPtr("/data/abc"), "local", map[string]string{"filename": "a.txt"})
	record.Offset = 10

	info, err := ToTusInfo(record)
	require.NoError(t, err)

	assert.Equal(t, handler.FileInfo{
		ID:       "abc",
		Size:     100,
		Offset:   10,
		MetaData: handler.MetaData{"filename": "a.txt"},
		Storage:  map[string]string{StorageTypeKey: "local", StoragePathKey: "/data/abc"},
	}, info)

	back, err := FromTusInfo(info, "other")
	require.NoError(t, err)
	back.CreatedAt = record.CreatedAt
	assert.Equal(t, record, back)
}

func TestToTusInfoOutOfRange(t *testing.T) {
	record := core.NewFileInfo("abc", lo.ToPtr(uint64(1<<63)), nil, "local", nil)

	_, err := ToTusInfo(record)
	require.ErrorIs(t, err, core.ErrSerialization)
}
