// Package infostoretest holds the behaviour every core.InfoStorage backend
// must share.
package infostoretest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lumeweb.com/infostore/core"
	"golang.org/x/sync/errgroup"
)

// RunTests runs the common storage tests against store. The store must be
// open and may already be prepared; it is not closed.
func RunTests(t *testing.T, store core.InfoStorage) {
	ctx := context.Background()

	require.NoError(t, store.Prepare(ctx))

	t.Run("PrepareIdempotent", func(t *testing.T) { testPrepareIdempotent(t, ctx, store) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, ctx, store) })
	t.Run("DeferredLength", func(t *testing.T) { testDeferredLength(t, ctx, store) })
	t.Run("Concatenation", func(t *testing.T) { testConcatenation(t, ctx, store) })
	t.Run("DuplicateCreate", func(t *testing.T) { testDuplicateCreate(t, ctx, store) })
	t.Run("UpdateUnknown", func(t *testing.T) { testUpdateUnknown(t, ctx, store) })
	t.Run("UpdateUnchanged", func(t *testing.T) { testUpdateUnchanged(t, ctx, store) })
	t.Run("UpdateRewritesColumns", func(t *testing.T) { testUpdateRewritesColumns(t, ctx, store) })
	t.Run("Unknown", func(t *testing.T) { testUnknown(t, ctx, store) })
	t.Run("RemoveIsFinal", func(t *testing.T) { testRemoveIsFinal(t, ctx, store) })
	t.Run("Scenario", func(t *testing.T) { testScenario(t, ctx, store) })
	t.Run("Concurrent", func(t *testing.T) { testConcurrent(t, ctx, store) })
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// RequireEqualInfo compares two records field by field. Times are compared
// as instants.
func RequireEqualInfo(t *testing.T, expected, actual *core.FileInfo) {
	t.Helper()

	require.NotNil(t, actual)
	assert.True(t, expected.CreatedAt.Equal(actual.CreatedAt), "created_at: expected %s, got %s", expected.CreatedAt, actual.CreatedAt)

	e := expected.Clone()
	a := actual.Clone()
	e.CreatedAt = a.CreatedAt

	require.Equal(t, e, a)
}

func remove(t *testing.T, ctx context.Context, store core.InfoStorage, id string) {
	t.Helper()

	if err := store.RemoveInfo(ctx, id); err != nil {
		assert.ErrorIs(t, err, core.ErrNotFound)
	}
}

func testPrepareIdempotent(t *testing.T, ctx context.Context, store core.InfoStorage) {
	require.NoError(t, store.Prepare(ctx))

	var group errgroup.Group
	for i := 0; i < 4; i++ {
		group.Go(func() error {
			return store.Prepare(ctx)
		})
	}
	require.NoError(t, group.Wait())
}

func testRoundTrip(t *testing.T, ctx context.Context, store core.InfoStorage) {
	info := core.NewFileInfo(newID("roundtrip"), lo.ToPtr(uint64(1<<40)), lo.ToPtr("/data/uploads/roundtrip"), "s3", map[string]string{
		"filename": "report.pdf",
		"filetype": "application/pdf",
		"unicode":  "zażółć gęślą jaźń",
		"quotes":   `"quoted" \ value`,
		"empty":    "",
	})
	info.Offset = 1 << 39
	defer remove(t, ctx, store, info.ID)

	require.NoError(t, store.SetInfo(ctx, info, true))

	got, err := store.GetInfo(ctx, info.ID)
	require.NoError(t, err)
	RequireEqualInfo(t, info, got)
}

func testDeferredLength(t *testing.T, ctx context.Context, store core.InfoStorage) {
	info := core.NewFileInfo(newID("deferred"), nil, nil, "local", nil)
	defer remove(t, ctx, store, info.ID)

	require.True(t, info.DeferredSize)
	require.NoError(t, store.SetInfo(ctx, info, true))

	got, err := store.GetInfo(ctx, info.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Length)
	assert.Nil(t, got.Path)
	assert.NotNil(t, got.Metadata)
	assert.Empty(t, got.Metadata)
	RequireEqualInfo(t, info, got)

	info.Length = lo.ToPtr(uint64(2048))
	info.DeferredSize = false
	require.NoError(t, store.SetInfo(ctx, info, false))

	got, err = store.GetInfo(ctx, info.ID)
	require.NoError(t, err)
	RequireEqualInfo(t, info, got)
}

func testConcatenation(t *testing.T, ctx context.Context, store core.InfoStorage) {
	partial := core.NewFileInfo(newID("partial"), lo.ToPtr(uint64(10)), nil, "local", nil)
	partial.IsPartial = true
	defer remove(t, ctx, store, partial.ID)

	require.NoError(t, store.SetInfo(ctx, partial, true))

	got, err := store.GetInfo(ctx, partial.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Parts)
	RequireEqualInfo(t, partial, got)

	final := core.NewFileInfo(newID("final"), lo.ToPtr(uint64(30)), nil, "local", nil)
	final.IsFinal = true
	final.Parts = []string{"c", "a", "b", partial.ID}
	defer remove(t, ctx, store, final.ID)

	require.NoError(t, store.SetInfo(ctx, final, true))

	got, err = store.GetInfo(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", partial.ID}, got.Parts)
	RequireEqualInfo(t, final, got)

	final.Parts = []string{}
	require.NoError(t, store.SetInfo(ctx, final, false))

	got, err = store.GetInfo(ctx, final.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Parts)
}

func testDuplicateCreate(t *testing.T, ctx context.Context, store core.InfoStorage) {
	info := core.NewFileInfo(newID("duplicate"), lo.ToPtr(uint64(100)), nil, "local", map[string]string{"n": "1"})
	defer remove(t, ctx, store, info.ID)

	require.NoError(t, store.SetInfo(ctx, info, true))

	second := info.Clone()
	second.Metadata["n"] = "2"
	err := store.SetInfo(ctx, second, true)
	require.ErrorIs(t, err, core.ErrDuplicateRecord)

	se := core.AsStorageError(err)
	require.NotNil(t, se)
	assert.Equal(t, info.ID, se.ID)

	got, err := store.GetInfo(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", got.Metadata["n"])
}

func testUpdateUnknown(t *testing.T, ctx context.Context, store core.InfoStorage) {
	info := core.NewFileInfo(newID("never-inserted"), lo.ToPtr(uint64(100)), nil, "local", nil)

	err := store.SetInfo(ctx, info, false)
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = store.GetInfo(ctx, info.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testUpdateUnchanged(t *testing.T, ctx context.Context, store core.InfoStorage) {
	info := core.NewFileInfo(newID("unchanged"), lo.ToPtr(uint64(100)), nil, "local", nil)
	defer remove(t, ctx, store, info.ID)

	require.NoError(t, store.SetInfo(ctx, info, true))

	// Rewriting identical values still matches the row.
	require.NoError(t, store.SetInfo(ctx, info, false))
	require.NoError(t, store.SetInfo(ctx, info, false))
}

func testUpdateRewritesColumns(t *testing.T, ctx context.Context, store core.InfoStorage) {
	info := core.NewFileInfo(newID("rewrite"), lo.ToPtr(uint64(100)), lo.ToPtr("/a"), "local", map[string]string{"a": "1"})
	defer remove(t, ctx, store, info.ID)

	require.NoError(t, store.SetInfo(ctx, info, true))

	updated := info.Clone()
	updated.Offset = 100
	updated.Path = lo.ToPtr("/b")
	updated.Storage = "s3"
	updated.IsPartial = true
	updated.Metadata = map[string]string{"b": "2"}
	require.NoError(t, store.SetInfo(ctx, updated, false))

	got, err := store.GetInfo(ctx, info.ID)
	require.NoError(t, err)
	RequireEqualInfo(t, updated, got)
	assert.NotContains(t, got.Metadata, "a")
}

func testUnknown(t *testing.T, ctx context.Context, store core.InfoStorage) {
	id := newID("unknown")

	_, err := store.GetInfo(ctx, id)
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), id)

	err = store.RemoveInfo(ctx, id)
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), id)
}

func testRemoveIsFinal(t *testing.T, ctx context.Context, store core.InfoStorage) {
	info := core.NewFileInfo(newID("remove"), lo.ToPtr(uint64(1)), nil, "local", nil)

	require.NoError(t, store.SetInfo(ctx, info, true))
	require.NoError(t, store.RemoveInfo(ctx, info.ID))

	_, err := store.GetInfo(ctx, info.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	err = store.RemoveInfo(ctx, info.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	err = store.SetInfo(ctx, info, false)
	require.ErrorIs(t, err, core.ErrNotFound)

	// The id can be created again once removed.
	require.NoError(t, store.SetInfo(ctx, info, true))
	require.NoError(t, store.RemoveInfo(ctx, info.ID))
}

func testScenario(t *testing.T, ctx context.Context, store core.InfoStorage) {
	id := "abc"
	remove(t, ctx, store, id)

	info := &core.FileInfo{
		ID:           id,
		Offset:       0,
		Length:       lo.ToPtr(uint64(100)),
		CreatedAt:    core.NewFileInfo(id, nil, nil, "", nil).CreatedAt,
		DeferredSize: false,
		IsPartial:    false,
		IsFinal:      false,
		Storage:      "local",
		Metadata:     map[string]string{"filename": "a.txt"},
	}
	require.NoError(t, store.SetInfo(ctx, info, true))

	got, err := store.GetInfo(ctx, id)
	require.NoError(t, err)
	RequireEqualInfo(t, info, got)

	got.Offset = 50
	require.NoError(t, store.SetInfo(ctx, got, false))

	updated, err := store.GetInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), updated.Offset)

	expected := info.Clone()
	expected.Offset = 50
	RequireEqualInfo(t, expected, updated)

	require.NoError(t, store.RemoveInfo(ctx, id))

	_, err = store.GetInfo(ctx, id)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testConcurrent(t *testing.T, ctx context.Context, store core.InfoStorage) {
	const uploads = 16

	ids := lo.Times(uploads, func(i int) string {
		return newID(fmt.Sprintf("concurrent-%d", i))
	})

	group, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		group.Go(func() error {
			info := core.NewFileInfo(id, lo.ToPtr(uint64(uploads)), nil, "local", nil)
			if err := store.SetInfo(gctx, info, true); err != nil {
				return err
			}

			for offset := uint64(1); offset <= 4; offset++ {
				info.Offset = offset
				if err := store.SetInfo(gctx, info, false); err != nil {
					return err
				}
			}

			got, err := store.GetInfo(gctx, id)
			if err != nil {
				return err
			}
			if got.Offset != 4 {
				return fmt.Errorf("%s: expected offset 4, got %d", id, got.Offset)
			}

			return store.RemoveInfo(gctx, id)
		})
	}

	require.NoError(t, group.Wait())

	for _, id := range ids {
		_, err := store.GetInfo(ctx, id)
		require.ErrorIs(t, err, core.ErrNotFound)
	}
}
