// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"golang.org/x/sync/singleflight"

	"github.com/tillwork/lsmdb/internal/base"
	"github.com/tillwork/lsmdb/internal/cache"
	"github.com/tillwork/lsmdb/internal/sstable"
	"github.com/tillwork/lsmdb/vfs"
)

// tableCache bounds the number of open sstable file descriptors, keeping
// the most recently used readers resident and coalescing concurrent opens
// of the same file into a single vfs.Open call.
type tableCache struct {
	fs      vfs.FS
	dirname string
	opts    *Options
	cache   *cache.Cache
	group   singleflight.Group
}

// tableCacheValue wraps an opened sstable.Reader so it satisfies
// cache.Value; Release closes the underlying file descriptor once the
// cache evicts it and every borrower has released its reference.
type tableCacheValue struct {
	reader *sstable.Reader
	file   vfs.File
}

func (v *tableCacheValue) Release() {
	v.reader.Close()
}

func newTableCache(fs vfs.FS, dirname string, opts *Options) *tableCache {
	return &tableCache{
		fs:      fs,
		dirname: dirname,
		opts:    opts,
		cache:   cache.New(opts.tableCacheCapacity()),
	}
}

func (tc *tableCache) findNode(num fileNum, size uint64) (*tableCacheValue, error) {
	if v, ok := tc.cache.Get(num); ok {
		return v.(*tableCacheValue), nil
	}
	res, err, _ := tc.group.Do(uint64Key(num).String(), func() (interface{}, error) {
		if v, ok := tc.cache.Get(num); ok {
			return v.(*tableCacheValue), nil
		}
		name := makeFilename(tc.fs, tc.dirname, fileTypeTable, num)
		f, err := tc.fs.Open(name)
		if err != nil {
			// Older databases wrote the legacy ".sst" suffix.
			legacy := legacyTableFilename(tc.fs, tc.dirname, num)
			f, err = tc.fs.Open(legacy)
			if err != nil {
				return nil, err
			}
		}
		r, err := sstable.NewReader(f, int64(size), tc.opts.Comparer)
		if err != nil {
			f.Close()
			return nil, err
		}
		v := &tableCacheValue{reader: r, file: f}
		tc.cache.Insert(num, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*tableCacheValue), nil
}

// uint64Key formats a fileNum as a cache/singleflight key string.
type uint64Key fileNum

func (k uint64Key) String() string {
	return "tbl:" + itoa(uint64(k))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// get looks up userKey in the table numbered num, returning base.ErrNotFound
// if the table's filter or index conclusively rules it out.
func (tc *tableCache) get(num fileNum, size uint64, userKey []byte, encodedLookupKey []byte) ([]byte, base.InternalKeyKind, error) {
	v, err := tc.findNode(num, size)
	if err != nil {
		return nil, 0, err
	}
	val, kind, err := v.reader.Get(userKey, encodedLookupKey)
	tc.cache.Release(num)
	return val, kind, err
}

// newIterator returns an iterator over the table numbered num, to be
// composed into a merging iterator by the caller.
func (tc *tableCache) newIterator(num fileNum, size uint64) (*sstable.Iterator, func(), error) {
	v, err := tc.findNode(num, size)
	if err != nil {
		return nil, nil, err
	}
	it := v.reader.NewIterator()
	return it, func() { tc.cache.Release(num) }, nil
}

// evict drops the cached reader for num, closing its file descriptor. Used
// by obsolete-file cleanup after a compaction removes a table.
func (tc *tableCache) evict(num fileNum) {
	tc.cache.Evict(num)
}
