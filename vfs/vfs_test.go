// Copyright 2025 the lsmdb Authors.

package vfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemFSCreateWriteReadRoundTrip(t *testing.T) {
	fs := NewMemFS()
	f, err := fs.Create("/dir/file.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rf, err := fs.Open("/dir/file.txt")
	require.NoError(t, err)
	defer rf.Close()
	got, err := io.ReadAll(rf)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestMemFSOpenMissingFileFails(t *testing.T) {
	fs := NewMemFS()
	_, err := fs.Open("/nope")
	require.Error(t, err)
}

func TestMemFSRenameMovesContents(t *testing.T) {
	fs := NewMemFS()
	f, err := fs.Create("/a")
	require.NoError(t, err)
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, fs.Rename("/a", "/b"))
	_, err = fs.Open("/a")
	require.Error(t, err)

	rf, err := fs.Open("/b")
	require.NoError(t, err)
	got, err := io.ReadAll(rf)
	require.NoError(t, err)
	require.Equal(t, "data", string(got))
}

func TestMemFSListReturnsImmediateChildren(t *testing.T) {
	fs := NewMemFS()
	for _, name := range []string{"/dir/a", "/dir/b", "/dir/sub/c"} {
		f, err := fs.Create(name)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	names, err := fs.List("/dir")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestMemFSLockPreventsSecondAcquire(t *testing.T) {
	fs := NewMemFS()
	l1, err := fs.Lock("/LOCK")
	require.NoError(t, err)

	_, err = fs.Lock("/LOCK")
	require.Error(t, err)

	require.NoError(t, l1.Close())

	l2, err := fs.Lock("/LOCK")
	require.NoError(t, err)
	require.NoError(t, l2.Close())
}

func TestMemFSReadAtReadsFromGivenOffset(t *testing.T) {
	fs := NewMemFS()
	f, err := fs.Create("/f")
	require.NoError(t, err)
	_, err = f.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rf, err := fs.Open("/f")
	require.NoError(t, err)
	defer rf.Close()

	buf := make([]byte, 4)
	_, err = rf.ReadAt(buf, 3)
	require.NoError(t, err)
	require.Equal(t, "3456", string(buf))

	_, err = rf.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "0123", string(buf))
}
