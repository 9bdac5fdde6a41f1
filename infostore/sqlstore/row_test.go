package sqlstore

import (
	"math"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lumeweb.com/infostore/core"
)

func TestModelRoundTrip(t *testing.T) {
	info := core.NewFileInfo("abc", lo.ToPtr(uint64(100)), lo.ToPtr("/data/abc"), "local", map[string]string{"filename": "a.txt"})
	info.IsFinal = true
	info.Parts = []string{"b", "a"}

	m, err := toModel(info)
	require.NoError(t, err)
	assert.JSONEq(t, `["b","a"]`, string(m.Parts))
	assert.JSONEq(t, `{"filename":"a.txt"}`, string(m.Metadata))

	decoded, err := fromModel(m)
	require.NoError(t, err)
	assert.Equal(t, info, decoded)

	cols := updates(m)
	assert.Len(t, cols, 10)
	assert.NotContains(t, cols, "id")
}

func TestModelEmptyParts(t *testing.T) {
	info := core.NewFileInfo("abc", nil, nil, "local", nil)
	info.Parts = []string{}

	m, err := toModel(info)
	require.NoError(t, err)
	assert.Nil(t, m.Parts)
	assert.Nil(t, m.Length)
}

func TestModelOutOfRange(t *testing.T) {
	info := core.NewFileInfo("abc", lo.ToPtr(uint64(math.MaxUint64)), nil, "local", nil)

	_, err := toModel(info)
	require.ErrorIs(t, err, core.ErrSerialization)
}
