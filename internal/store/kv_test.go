package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKV(t *testing.T, kv KV) {
	t.Helper()

	_, ok, err := kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set("bluetoothData", "[1]"))
	require.NoError(t, kv.Set("bluetoothData", "[1,2]"))

	v, ok, err := kv.Get("bluetoothData")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[1,2]", v)

	require.NoError(t, kv.Close())
}

func TestFileKV(t *testing.T) {
	kv, err := OpenFileKV(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	testKV(t, kv)
}

func TestFileKVEscapesKeys(t *testing.T) {
	dir := t.TempDir()
	kv, err := OpenFileKV(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Set("../escape", "x"))
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestSQLiteKV(t *testing.T) {
	kv, err := OpenSQLiteKV(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	testKV(t, kv)
}

func TestSQLiteKVPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	kv, err := OpenSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set("k", "v"))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()

	v, ok, err := kv.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestOpenKV(t *testing.T) {
	dir := t.TempDir()

	kv, err := OpenKV("file", filepath.Join(dir, "files"))
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)
	kv.Close()

	kv, err = OpenKV("sqlite", filepath.Join(dir, "db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteKV{}, kv)
	kv.Close()

	_, err = OpenKV("etcd", dir)
	assert.Error(t, err)
}
