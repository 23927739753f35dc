// Copyright 2025 the lsmdb Authors.

package sstable

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/tillwork/lsmdb/internal/base"
	"github.com/tillwork/lsmdb/internal/bloom"
)

// ReadableFile is the subset of an open file a Reader needs: random-access
// reads and Close. The file's total size is passed to NewReader separately.
type ReadableFile interface {
	io.ReaderAt
	io.Closer
}

// Reader opens one sorted table for point lookups and iteration. It parses
// the footer and index block eagerly; data blocks are decoded on demand
// (and normally held in the caller's block cache, not here).
type Reader struct {
	file   ReadableFile
	size   int64
	cmp    func(a, b []byte) int
	index  []byte // decoded index block contents
	filter bloom.Filter
}

// NewReader parses footer, index, and optional filter block from f.
func NewReader(f ReadableFile, size int64, comparer *base.Comparer) (*Reader, error) {
	if comparer == nil {
		comparer = base.DefaultComparer
	}
	if size < footerLen {
		return nil, errors.New("lsmdb/sstable: file too small to be a table")
	}
	footerBuf := make([]byte, footerLen)
	if _, err := f.ReadAt(footerBuf, size-footerLen); err != nil {
		return nil, err
	}
	ft, err := decodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	index, err := readBlockAt(f, ft.indexHandle)
	if err != nil {
		return nil, errors.Wrap(err, "lsmdb/sstable: reading index block")
	}

	r := &Reader{file: f, size: size, cmp: comparer.Compare, index: index}

	if ft.metaindexHandle.Length > 0 {
		filterBlock, err := readBlockAt(f, ft.metaindexHandle)
		if err != nil {
			return nil, errors.Wrap(err, "lsmdb/sstable: reading filter block")
		}
		it, err := newBlockIter(comparer.Compare, filterBlock)
		if err != nil {
			return nil, err
		}
		it.SeekToFirst()
		if it.Valid() {
			r.filter = bloom.Filter(it.Value())
		}
	}
	return r, nil
}

func readBlockAt(f ReadableFile, h BlockHandle) ([]byte, error) {
	raw := make([]byte, h.Length+blockTrailerLen)
	if _, err := f.ReadAt(raw, int64(h.Offset)); err != nil {
		return nil, err
	}
	return readBlock(raw)
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.file.Close() }

// mayContain reports whether key could be present, consulting the filter
// block when one was written. With no filter, it always returns true.
func (r *Reader) mayContain(userKey []byte) bool {
	if r.filter == nil {
		return true
	}
	return r.filter.MayContain(userKey)
}

// Get looks up the exact internal key ikey (an already lookup-encoded
// internal key), returning the value of the first entry whose encoded form
// compares >= ikey, or base.ErrNotFound if the index has no such block or
// the filter rules out userKey entirely.
func (r *Reader) Get(userKey []byte, ikey []byte) ([]byte, base.InternalKeyKind, error) {
	if !r.mayContain(userKey) {
		return nil, 0, base.ErrNotFound
	}
	it := r.NewIterator()
	it.Seek(ikey)
	if !it.Valid() {
		return nil, 0, base.ErrNotFound
	}
	gotKey, err := base.DecodeInternalKey(it.Key())
	if err != nil {
		return nil, 0, err
	}
	if !bytesEqual(gotKey.UserKey, userKey) {
		return nil, 0, base.ErrNotFound
	}
	return it.Value(), gotKey.Kind(), nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Iterator walks a table's entries in key order, transparently crossing
// data-block boundaries via the index block.
type Iterator struct {
	r       *Reader
	idxIter *blockIter
	dataIter *blockIter
	err     error
}

// NewIterator returns an Iterator positioned before the first entry.
func (r *Reader) NewIterator() *Iterator {
	idxIter, _ := newBlockIter(r.cmp, r.index)
	return &Iterator{r: r, idxIter: idxIter}
}

func (it *Iterator) loadDataBlock() bool {
	if !it.idxIter.Valid() {
		it.dataIter = nil
		return false
	}
	handle, _, err := decodeBlockHandle(it.idxIter.Value())
	if err != nil {
		it.err = err
		return false
	}
	raw, err := readBlockAt(it.r.file, handle)
	if err != nil {
		it.err = err
		return false
	}
	di, err := newBlockIter(it.r.cmp, raw)
	if err != nil {
		it.err = err
		return false
	}
	it.dataIter = di
	return true
}

// SeekToFirst positions the iterator at the smallest entry.
func (it *Iterator) SeekToFirst() {
	it.idxIter.SeekToFirst()
	if !it.loadDataBlock() {
		return
	}
	it.dataIter.SeekToFirst()
}

// SeekToLast positions the iterator at the largest entry.
func (it *Iterator) SeekToLast() {
	it.idxIter.SeekToLast()
	if !it.loadDataBlock() {
		return
	}
	it.dataIter.SeekToLast()
}

// Seek positions the iterator at the first entry whose key is >= target.
func (it *Iterator) Seek(target []byte) {
	it.idxIter.Seek(target)
	if !it.loadDataBlock() {
		return
	}
	it.dataIter.Seek(target)
	if !it.dataIter.Valid() {
		// target falls after every key in this block; advance to the next
		// block's first entry.
		it.idxIter.Next()
		if !it.loadDataBlock() {
			return
		}
		it.dataIter.SeekToFirst()
	}
}

// Next advances to the next entry, crossing into the next data block when
// the current one is exhausted.
func (it *Iterator) Next() {
	it.dataIter.Next()
	for !it.dataIter.Valid() {
		it.idxIter.Next()
		if !it.loadDataBlock() {
			return
		}
		it.dataIter.SeekToFirst()
	}
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.dataIter != nil && it.dataIter.Valid() }

// Key returns the encoded internal key at the current position.
func (it *Iterator) Key() []byte { return it.dataIter.Key() }

// Value returns the value at the current position.
func (it *Iterator) Value() []byte { return it.dataIter.Value() }

// Error returns the first error encountered while crossing block
// boundaries, if any.
func (it *Iterator) Error() error { return it.err }
