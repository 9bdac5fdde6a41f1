package infostorecmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lumeweb.com/infostore/config"
	"go.lumeweb.com/infostore/core"
	"go.lumeweb.com/infostore/infostore/sqlstore"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

func newTestStore(t *testing.T) (core.InfoStorage, *core.Logger) {
	t.Helper()

	logger := core.NewLoggerFromZap(zaptest.NewLogger(t))
	store, err := sqlstore.New(config.DatabaseConfig{
		Type:     config.DatabaseTypeSQLite,
		File:     filepath.Join(t.TempDir(), "infostore.db"),
		Table:    "file_info",
		MaxConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	return store, logger
}

func TestParseCommand(t *testing.T) {
	for _, args := range [][]string{{"prepare"}, {"ping"}, {"get", "abc"}, {"remove", "abc"}} {
		cmd, err := parseCommand(args)
		require.NoError(t, err, args)
		assert.Equal(t, args[0], cmd.name)
		assert.NotNil(t, cmd.run)
	}

	for _, args := range [][]string{nil, {"list"}, {"get"}, {"remove", "a", "b"}, {"prepare", "now"}} {
		_, err := parseCommand(args)
		require.Error(t, err, args)
	}
}

func TestCommands(t *testing.T) {
	store, logger := newTestStore(t)
	ctx := context.Background()
	var out bytes.Buffer

	run := func(args ...string) error {
		cmd, err := parseCommand(args)
		require.NoError(t, err)
		return cmd.run(ctx, store, &out, logger)
	}

	require.NoError(t, run("prepare"))
	require.NoError(t, run("ping"))

	info := core.NewFileInfo("abc", lo.ToPtr(uint64(2048)), lo.ToPtr("/data/abc"), "local", map[string]string{"filename": "a.txt"})
	info.Offset = 1024
	require.NoError(t, store.SetInfo(ctx, info, true))

	require.NoError(t, run("get", "abc"))

	var printed map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, "abc", printed["id"])
	assert.Equal(t, 1024, printed["offset"])
	assert.Equal(t, "1.024kB / 2.048kB", printed["progress"])
	assert.Equal(t, map[string]any{"filename": "a.txt"}, printed["metadata"])

	require.NoError(t, run("remove", "abc"))

	err := run("get", "abc")
	require.ErrorIs(t, err, core.ErrNotFound)

	err = run("remove", "abc")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestInfoViewDeferred(t *testing.T) {
	view := newInfoView(core.NewFileInfo("abc", nil, nil, "local", nil))
	assert.Equal(t, "0B / deferred", view.Progress)
	assert.Nil(t, view.Length)
}

func TestRunUsage(t *testing.T) {
	assert.Equal(t, core.ExitCodeUsage, run([]string{}))
	assert.Equal(t, core.ExitCodeUsage, run([]string{"-config"}))
	assert.Equal(t, core.ExitCodeUsage, run([]string{"frobnicate"}))
}

func TestRunWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "infostore.yaml")
	t.Setenv("INFOSTORE_CORE__STORE__TYPE", "sql")
	t.Setenv("INFOSTORE_CORE__STORE__DB__FILE", filepath.Join(dir, "infostore.db"))

	assert.Equal(t, core.ExitCodeSuccess, run([]string{"-config", configFile, "prepare"}))
	assert.Equal(t, core.ExitCodeSuccess, run([]string{"-config", configFile, "ping"}))
	assert.Equal(t, core.ExitCodeFailedCommand, run([]string{"-config", configFile, "get", "missing"}))
	assert.FileExists(t, configFile)
}
