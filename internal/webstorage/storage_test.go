// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package webstorage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	dir := t.TempDir()

	file, err := Open(DriverFile, filepath.Join(dir, "storage.json"), nil)
	require.NoError(t, err)
	sqlite, err := Open(DriverSQLite, filepath.Join(dir, "storage.db"), nil)
	require.NoError(t, err)
	mem, err := Open(DriverMemory, "", nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		file.Close()
		sqlite.Close()
		mem.Close()
	})
	return map[string]Storage{"file": file, "sqlite": sqlite, "memory": mem}
}

func TestStorage_Contract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.GetItem(KeyAuthToken)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SetItem(KeyAuthToken, "abc"))
			require.NoError(t, s.SetItem(KeyLocalChats, "[]"))

			v, ok, err := s.GetItem(KeyAuthToken)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "abc", v)

			require.NoError(t, s.SetItem(KeyAuthToken, "def"))
			v, _, err = s.GetItem(KeyAuthToken)
			require.NoError(t, err)
			assert.Equal(t, "def", v)

			keys, err := s.Keys()
			require.NoError(t, err)
			assert.Equal(t, []string{KeyAuthToken, KeyLocalChats}, keys)

			require.NoError(t, s.RemoveItem(KeyAuthToken))
			require.NoError(t, s.RemoveItem("missing"))
			_, ok, err = s.GetItem(KeyAuthToken)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStorage_EmptyValueIsPresent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetItem("k", ""))
			v, ok, err := s.GetItem("k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Empty(t, v)
		})
	}
}

func TestFileStorage_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	s1, err := NewFileStorage(path, nil)
	require.NoError(t, err)
	require.NoError(t, s1.SetItem("greeting", "안녕하세요"))
	require.NoError(t, s1.Close())

	s2, err := NewFileStorage(path, nil)
	require.NoError(t, err)
	v, ok, err := s2.GetItem("greeting")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "안녕하세요", v)
}

func TestFileStorage_SeesOtherWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	a, err := NewFileStorage(path, nil)
	require.NoError(t, err)
	b, err := NewFileStorage(path, nil)
	require.NoError(t, err)

	require.NoError(t, a.SetItem(KeyAuthToken, "tok"))
	v, ok, err := b.GetItem(KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestFileStorage_CorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := Open(DriverFile, path, nil)
	require.NoError(t, err)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	// The next write replaces the corrupt file.
	require.NoError(t, s.SetItem("k", "v"))
	v, ok, err := s.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFileStorage_Permissions(t *testing.T) {
	if os.PathSeparator == '\\' {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "storage.json")
	s, err := NewFileStorage(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetItem(KeyAuthToken, "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSQLiteStorage_Permissions(t *testing.T) {
	if os.PathSeparator == '\\' {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "storage.db")
	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SetItem(KeyAuthToken, "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStorage_Closed(t *testing.T) {
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "s.json"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.GetItem("k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.SetItem("k", "v"), ErrClosed)
}

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.db")

	s1, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, s1.SetItem(KeyLocalChats, `[{"id":"local_1_abc"}]`))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s2.Close()
	v, ok, err := s2.GetItem(KeyLocalChats)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"local_1_abc"}]`, v)
	assert.Equal(t, path, s2.Path())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("indexeddb", "x", nil)
	assert.Error(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(DriverFile, "", nil)
	assert.Error(t, err)
	_, err = Open(DriverSQLite, "", nil)
	assert.Error(t, err)
}

func TestLocator(t *testing.T) {
	s, err := Open(DriverFile, filepath.Join(t.TempDir(), "s.json"), nil)
	require.NoError(t, err)
	_, ok := s.(Locator)
	assert.True(t, ok)

	m, err := Open(DriverMemory, "", nil)
	require.NoError(t, err)
	_, ok = m.(Locator)
	assert.False(t, ok)
}
