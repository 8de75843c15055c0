package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubGooseUp(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string) error) {
	t.Helper()
	orig := gooseUp
	gooseUp = fn
	t.Cleanup(func() { gooseUp = orig })
}

func TestMigrate_RunsFromRootDir(t *testing.T) {
	var gotDir string
	stubGooseUp(t, func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	})

	fsys := fstest.MapFS{"00001_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;")}}
	require.NoError(t, migrate(context.Background(), nil, fsys, nil))
	assert.Equal(t, ".", gotDir)
}

func TestMigrate_RetriesConnectionErrors(t *testing.T) {
	noSleep(t)
	calls := 0
	stubGooseUp(t, func(context.Context, *sql.DB, string) error {
		calls++
		if calls == 1 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})

	require.NoError(t, migrate(context.Background(), nil, fstest.MapFS{}, nil))
	assert.Equal(t, 2, calls)
}

func TestMigrate_SQLErrorIsFinal(t *testing.T) {
	noSleep(t)
	calls := 0
	stubGooseUp(t, func(context.Context, *sql.DB, string) error {
		calls++
		return errors.New(`syntax error at or near "TABL"`)
	})

	err := migrate(context.Background(), nil, fstest.MapFS{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run migrations")
	assert.Equal(t, 1, calls)
}
