package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lumeweb.com/infostore/config"
	"go.lumeweb.com/infostore/core"
	"go.lumeweb.com/infostore/db"
	"go.lumeweb.com/infostore/infostore/infostoretest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	if *infostoretest.PostgresConnStr == "" {
		t.Skipf("postgres flag missing, example: -postgres-test-db=%s", "postgres://postgres@localhost/infostore?sslmode=disable")
	}

	cfg := config.PostgresConfig{
		DSN:      *infostoretest.PostgresConnStr,
		Schema:   "public",
		Table:    "file_info_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		MaxConns: 10,
	}

	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))
	store, err := New(context.Background(), cfg, db.NoTLS{}, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		conn, err := store.pool.Acquire(ctx)
		if err == nil {
			_, err = conn.Exec(ctx, "DROP TABLE IF EXISTS "+store.queries.table)
			conn.Release()
		}
		assert.NoError(t, err)
		require.NoError(t, store.Close())
	})

	return store
}

func TestStore(t *testing.T) {
	store := newTestStore(t)
	infostoretest.RunTests(t, store)
}

func TestStorePing(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Ping(context.Background()))
}

func TestStoreRejectsCorruptMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Prepare(ctx))

	info := core.NewFileInfo("corrupt", nil, nil, "local", nil)
	require.NoError(t, store.SetInfo(ctx, info, true))

	conn, err := store.pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, "UPDATE "+store.queries.table+` SET metadata = '{"size": 10}'::jsonb WHERE id = $1`, info.ID)
	conn.Release()
	require.NoError(t, err)

	_, err = store.GetInfo(ctx, info.ID)
	require.ErrorIs(t, err, core.ErrSerialization)
	require.NotErrorIs(t, err, core.ErrNotFound)
}

func TestStoreUnreachable(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "postgres",
		Name:     "infostore",
		Schema:   "public",
		Table:    "file_info",
		MaxConns: 2,
	}

	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))
	store, err := New(context.Background(), cfg, db.NoTLS{}, logger)
	require.NoError(t, err, "construction must not dial")
	defer func() { require.NoError(t, store.Close()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = store.Prepare(ctx)
	require.ErrorIs(t, err, core.ErrStorageUnavailable)
	require.ErrorIs(t, err, core.ErrConnection)

	info := core.NewFileInfo("abc", nil, nil, "local", nil)

	err = store.SetInfo(ctx, info, true)
	require.ErrorIs(t, err, core.ErrConnection)

	err = store.SetInfo(ctx, info, false)
	require.ErrorIs(t, err, core.ErrConnection)

	_, err = store.GetInfo(ctx, "abc")
	require.ErrorIs(t, err, core.ErrConnection)
	assert.Contains(t, err.Error(), "get_info abc")

	err = store.RemoveInfo(ctx, "abc")
	require.ErrorIs(t, err, core.ErrConnection)
	require.NotErrorIs(t, err, core.ErrNotFound)
}

func TestStoreUnreachableLogsOnce(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "postgres",
		Name:     "infostore",
		Schema:   "public",
		Table:    "file_info",
		MaxConns: 2,
	}

	observed, logs := observer.New(zap.DebugLevel)
	logger := core.NewLoggerFromZap(zap.New(observed))

	store, err := New(context.Background(), cfg, db.NoTLS{}, logger)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = store.GetInfo(ctx, "abc")
	require.ErrorIs(t, err, core.ErrConnection)

	failures := logs.FilterLevelExact(zap.ErrorLevel)
	require.Equal(t, 1, failures.Len())

	entry := failures.All()[0]
	assert.Equal(t, opGetInfo, entry.ContextMap()["op"])
	assert.Equal(t, "abc", entry.ContextMap()["id"])
}

func TestSetInfoNil(t *testing.T) {
	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))
	store := &Store{logger: logger, queries: newQueries("public", "file_info")}

	err := store.SetInfo(context.Background(), nil, true)
	require.ErrorIs(t, err, core.ErrSerialization)
}

func TestSetInfoOffsetOverflow(t *testing.T) {
	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))
	store := &Store{logger: logger, queries: newQueries("public", "file_info")}

	info := core.NewFileInfo("abc", nil, nil, "local", nil)
	info.Offset = 1 << 63

	// Encoding fails before a connection is needed.
	err := store.SetInfo(context.Background(), info, true)
	require.ErrorIs(t, err, core.ErrSerialization)
}
