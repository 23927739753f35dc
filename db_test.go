// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tillwork/lsmdb/vfs"
)

func testOptions(fs vfs.FS) *Options {
	return &Options{
		FS:              fs,
		CreateIfMissing: true,
	}
}

func TestDBOpenPutGet(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("foo"), []byte("bar"), nil))

	v, err := db.Get([]byte("foo"), nil)
	require.NoError(t, err)
	require.Equal(t, "bar", string(v))
}

func TestDBGetMissingKeyReturnsErrNotFound(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Get([]byte("nope"), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDBOverwriteReturnsNewestValue(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v1"), nil))
	require.NoError(t, db.Put([]byte("k"), []byte("v2"), nil))

	v, err := db.Get([]byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, "v2", string(v))
}

func TestDBDeleteRemovesKey(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v"), nil))
	require.NoError(t, db.Delete([]byte("k"), nil))

	_, err = db.Get([]byte("k"), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDBOpenNonexistentWithoutCreateIfMissingFails(t *testing.T) {
	fs := vfs.NewMemFS()
	_, err := Open("/db", &Options{FS: fs})
	require.Error(t, err)
}

func TestDBErrorIfExistsRejectsReopen(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open("/db", &Options{FS: fs, ErrorIfExists: true})
	require.Error(t, err)
}

func TestDBSnapshotIsolatesLaterWrites(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v1"), nil))
	snap := db.GetSnapshot()
	defer db.ReleaseSnapshot(snap)

	require.NoError(t, db.Put([]byte("k"), []byte("v2"), nil))

	v, err := db.Get([]byte("k"), &ReadOptions{Snapshot: snap})
	require.NoError(t, err)
	require.Equal(t, "v1", string(v))

	v, err = db.Get([]byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, "v2", string(v))
}

func TestDBSnapshotSeesKeyDeletedLater(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v1"), nil))
	snap := db.GetSnapshot()
	defer db.ReleaseSnapshot(snap)

	require.NoError(t, db.Delete([]byte("k"), nil))

	v, err := db.Get([]byte("k"), &ReadOptions{Snapshot: snap})
	require.NoError(t, err)
	require.Equal(t, "v1", string(v))

	_, err = db.Get([]byte("k"), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDBRecoversWritesAfterReopen(t *testing.T) {
	fs := vfs.NewMemFS()
	opts := testOptions(fs)

	db, err := Open("/db", opts)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, db.Put([]byte(fmt.Sprintf("key-%03d", i)), []byte(fmt.Sprintf("val-%03d", i)), nil))
	}
	require.NoError(t, db.Close())

	db2, err := Open("/db", opts)
	require.NoError(t, err)
	defer db2.Close()

	for i := 0; i < 100; i++ {
		v, err := db2.Get([]byte(fmt.Sprintf("key-%03d", i)), nil)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("val-%03d", i), string(v))
	}
}

func TestDBRecoversTombstoneAfterReopen(t *testing.T) {
	fs := vfs.NewMemFS()
	opts := testOptions(fs)

	db, err := Open("/db", opts)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), []byte("v"), nil))
	require.NoError(t, db.Delete([]byte("k"), nil))
	require.NoError(t, db.Close())

	db2, err := Open("/db", opts)
	require.NoError(t, err)
	defer db2.Close()

	_, err = db2.Get([]byte("k"), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDBFlushesMemTableWhenWriteBufferExceeded(t *testing.T) {
	fs := vfs.NewMemFS()
	opts := testOptions(fs)
	opts.WriteBufferSize = minWriteBufferSize

	db, err := Open("/db", opts)
	require.NoError(t, err)
	defer db.Close()

	value := make([]byte, 4<<10)
	for i := range value {
		value[i] = byte(i)
	}
	for i := 0; i < 64; i++ {
		require.NoError(t, db.Put([]byte(fmt.Sprintf("key-%04d", i)), value, nil))
	}

	db.mu.Lock()
	for db.bgCompactionScheduled {
		db.writerCond.Wait()
	}
	// A flush may place its table below level 0
	// (pickLevelForMemTableOutput), so count tables at every level.
	n := 0
	for level := 0; level < numLevels; level++ {
		n += len(db.versions.current.files[level])
	}
	db.mu.Unlock()
	require.Greater(t, n, 0)

	for i := 0; i < 64; i++ {
		v, err := db.Get([]byte(fmt.Sprintf("key-%04d", i)), nil)
		require.NoError(t, err)
		require.Equal(t, value, v)
	}
}

func TestDBIteratorVisitsKeysInOrder(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	keys := []string{"c", "a", "e", "b", "d"}
	for _, k := range keys {
		require.NoError(t, db.Put([]byte(k), []byte("v-"+k), nil))
	}

	it, err := db.NewIter(nil)
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestDBIteratorSkipsDeletedKeys(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("a"), []byte("1"), nil))
	require.NoError(t, db.Put([]byte("b"), []byte("2"), nil))
	require.NoError(t, db.Delete([]byte("a"), nil))

	it, err := db.NewIter(nil)
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	require.Equal(t, []string{"b"}, got)
}

func TestDBWriteBatchIsAtomic(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	b := NewBatch()
	b.Set([]byte("a"), []byte("1"))
	b.Set([]byte("b"), []byte("2"))
	b.Delete([]byte("a"))
	require.NoError(t, db.Write(b, nil))

	_, err = db.Get([]byte("a"), nil)
	require.ErrorIs(t, err, ErrNotFound)

	v, err := db.Get([]byte("b"), nil)
	require.NoError(t, err)
	require.Equal(t, "2", string(v))
}

func TestDBGetPropertyNumFilesAtLevel(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	s, ok := db.GetProperty("lsmdb.num-files-at-level0")
	require.True(t, ok)
	require.Equal(t, "0", s)

	_, ok = db.GetProperty("lsmdb.not-a-real-property")
	require.False(t, ok)
}

func TestDBCompactRangeKeepsKeysReadable(t *testing.T) {
	fs := vfs.NewMemFS()
	opts := testOptions(fs)
	opts.WriteBufferSize = minWriteBufferSize

	db, err := Open("/db", opts)
	require.NoError(t, err)
	defer db.Close()

	value := make([]byte, 4<<10)
	for i := 0; i < 64; i++ {
		require.NoError(t, db.Put([]byte(fmt.Sprintf("key-%04d", i)), value, nil))
	}

	require.NoError(t, db.CompactRange(nil, nil))

	for i := 0; i < 64; i++ {
		v, err := db.Get([]byte(fmt.Sprintf("key-%04d", i)), nil)
		require.NoError(t, err)
		require.Equal(t, value, v)
	}
}

func TestDBConcurrentWritersAllSucceed(t *testing.T) {
	fs := vfs.NewMemFS()
	db, err := Open("/db", testOptions(fs))
	require.NoError(t, err)
	defer db.Close()

	const n = 50
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errs <- db.Put([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i)), nil)
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	for i := 0; i < n; i++ {
		v, err := db.Get([]byte(fmt.Sprintf("k%d", i)), nil)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("v%d", i), string(v))
	}
}
