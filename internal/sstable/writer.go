// Copyright 2025 the lsmdb Authors.

package sstable

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/tillwork/lsmdb/internal/base"
	"github.com/tillwork/lsmdb/internal/bloom"
)

// WriterOptions configures how a table is built. It mirrors the block_size/
// block_restart_interval/compression/filter_policy configuration options.
type WriterOptions struct {
	Comparer            *base.Comparer
	BlockSize           int
	BlockRestartInterval int
	Compression         Compression
	FilterBitsPerKey     int // 0 disables the Bloom filter block
}

// Writer builds one sorted table, written to w as Add is called with keys
// in strictly increasing order.
type Writer struct {
	w       io.Writer
	opts    WriterOptions
	offset  uint64
	dataBlk *blockWriter
	idxBlk  *blockWriter
	filterKeys [][]byte
	pendingIndexEntry bool
	pendingHandle     BlockHandle
	lastKey           []byte
	err               error

	numEntries int
}

// NewWriter returns a Writer that writes a complete table to w.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	if opts.BlockSize <= 0 {
		opts.BlockSize = 4096
	}
	if opts.BlockRestartInterval <= 0 {
		opts.BlockRestartInterval = 16
	}
	if opts.Comparer == nil {
		opts.Comparer = base.DefaultComparer
	}
	return &Writer{
		w:       w,
		opts:    opts,
		dataBlk: newBlockWriter(opts.BlockRestartInterval),
		idxBlk:  newBlockWriter(1), // index block never benefits from prefix sharing
	}
}

// Add appends one entry. key is the encoded internal key; entries must
// arrive in ascending order under opts.Comparer applied to the internal
// key's user-key prefix (callers pass base.InternalCompareEncoded-ordered
// keys).
func (wtr *Writer) Add(key, value []byte) error {
	if wtr.err != nil {
		return wtr.err
	}
	if wtr.pendingIndexEntry {
		wtr.finishIndexEntry(key)
	}
	wtr.dataBlk.add(key, value)
	if wtr.opts.FilterBitsPerKey > 0 {
		// Reader.mayContain probes with user keys, so the filter is built
		// over the user-key part of each internal key.
		ik, err := base.DecodeInternalKey(key)
		if err != nil {
			wtr.err = err
			return err
		}
		wtr.filterKeys = append(wtr.filterKeys, append([]byte(nil), ik.UserKey...))
	}
	wtr.lastKey = append(wtr.lastKey[:0], key...)
	wtr.numEntries++

	if wtr.dataBlk.estimatedSize() >= wtr.opts.BlockSize {
		wtr.flushDataBlock()
	}
	return wtr.err
}

// flushDataBlock writes the pending data block and defers adding its index
// entry until the first key of the next block is known (or Finish is
// called), so the index can store the shortest separator rather than the
// block's last key verbatim.
func (wtr *Writer) flushDataBlock() {
	if wtr.dataBlk.empty() {
		return
	}
	handle, err := wtr.writeBlock(wtr.dataBlk)
	wtr.dataBlk.reset()
	if err != nil {
		wtr.err = err
		return
	}
	wtr.pendingIndexEntry = true
	wtr.pendingHandle = handle
}

func (wtr *Writer) finishIndexEntry(nextKey []byte) {
	sep := separator(wtr.opts.Comparer.Compare, wtr.lastKey, nextKey)
	wtr.idxBlk.add(sep, wtr.pendingHandle.encode(nil))
	wtr.pendingIndexEntry = false
}

// separator returns the shortest key in [lastKey, nextKey) that still
// routes a Seek to the correct data block; when no such shortening exists
// it just returns lastKey.
func separator(cmp func(a, b []byte) int, lastKey, nextKey []byte) []byte {
	if nextKey == nil {
		return lastKey
	}
	n := len(lastKey)
	if len(nextKey) < n {
		n = len(nextKey)
	}
	i := 0
	for i < n && lastKey[i] == nextKey[i] {
		i++
	}
	if i < n && lastKey[i] < 0xff && lastKey[i]+1 < nextKey[i] {
		sep := append(append([]byte(nil), lastKey[:i]...), lastKey[i]+1)
		if cmp(sep, nextKey) < 0 {
			return sep
		}
	}
	return lastKey
}

func (wtr *Writer) writeBlock(b *blockWriter) (BlockHandle, error) {
	raw := b.finish()
	compressed := compressBlock(wtr.opts.Compression, raw)
	buf := appendBlockTrailer(nil, compressed, wtr.opts.Compression)
	n, err := wtr.w.Write(buf)
	if err != nil {
		return BlockHandle{}, err
	}
	handle := BlockHandle{Offset: wtr.offset, Length: uint64(len(buf) - blockTrailerLen)}
	wtr.offset += uint64(n)
	return handle, nil
}

// Finish flushes any pending data, writes the filter and index blocks, and
// writes the footer. The Writer must not be used afterward.
func (wtr *Writer) Finish() error {
	if wtr.err != nil {
		return wtr.err
	}
	wtr.flushDataBlock()
	if wtr.pendingIndexEntry {
		wtr.finishIndexEntry(nil)
	}
	if wtr.err != nil {
		return wtr.err
	}

	var metaHandle BlockHandle
	if wtr.opts.FilterBitsPerKey > 0 && len(wtr.filterKeys) > 0 {
		filter := bloom.NewFilter(nil, wtr.filterKeys, wtr.opts.FilterBitsPerKey)
		fw := newBlockWriter(1)
		fw.add([]byte("filter.bloom"), filter)
		h, err := wtr.writeBlock(fw)
		if err != nil {
			return err
		}
		metaHandle = h
	}

	indexHandle, err := wtr.writeBlock(wtr.idxBlk)
	if err != nil {
		return err
	}

	f := footer{metaindexHandle: metaHandle, indexHandle: indexHandle, compression: wtr.opts.Compression}
	if _, err := wtr.w.Write(f.encode()); err != nil {
		return err
	}
	wtr.err = errors.New("lsmdb/sstable: writer already finished")
	return nil
}

// NumEntries returns the number of entries written so far.
func (wtr *Writer) NumEntries() int { return wtr.numEntries }

// EstimatedSize returns the number of bytes written to w so far, plus the
// as-yet-unflushed pending data block; used to decide when a table has
// grown past max_file_size and a new output file should be cut.
func (wtr *Writer) EstimatedSize() uint64 {
	return wtr.offset + uint64(wtr.dataBlk.estimatedSize())
}
