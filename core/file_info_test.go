package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewFileInfo(t *testing.T) {
	length := uint64(100)
	info := NewFileInfo("abc", &length, nil, "local", nil)

	assert.Equal(t, "abc", info.ID)
	assert.False(t, info.DeferredSize)
	assert.NotNil(t, info.Metadata)
	assert.Equal(t, time.UTC, info.CreatedAt.Location())
	assert.Zero(t, info.CreatedAt.Nanosecond()%int(time.Microsecond))
	assert.WithinDuration(t, time.Now(), info.CreatedAt, time.Minute)

	deferred := NewFileInfo("def", nil, nil, "local", map[string]string{"a": "b"})
	assert.True(t, deferred.DeferredSize)
	assert.Equal(t, "b", deferred.Metadata["a"])
}

func TestFileInfoClone(t *testing.T) {
	length := uint64(100)
	path := "/data/abc"
	info := NewFileInfo("abc", &length, &path, "local", map[string]string{"a": "b"})
	info.Parts = []string{"p1"}

	c := info.Clone()
	assert.Equal(t, info, c)

	*c.Length = 5
	*c.Path = "/elsewhere"
	c.Parts[0] = "p2"
	c.Metadata["a"] = "c"

	assert.Equal(t, uint64(100), *info.Length)
	assert.Equal(t, "/data/abc", *info.Path)
	assert.Equal(t, "p1", info.Parts[0])
	assert.Equal(t, "b", info.Metadata["a"])
}
