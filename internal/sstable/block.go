// Copyright 2025 the lsmdb Authors.

package sstable

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// blockWriter accumulates key/value entries into one data or index block,
// using restart-point prefix compression: every restartInterval'th entry is
// stored in full, the entries between it store only the suffix that
// differs from the previous key.
type blockWriter struct {
	restartInterval int
	buf             []byte
	restarts        []uint32
	counter         int
	lastKey         []byte
}

func newBlockWriter(restartInterval int) *blockWriter {
	return &blockWriter{restartInterval: restartInterval, restarts: []uint32{0}}
}

func (w *blockWriter) add(key, value []byte) {
	shared := 0
	if w.counter < w.restartInterval {
		n := len(w.lastKey)
		if len(key) < n {
			n = len(key)
		}
		for shared < n && w.lastKey[shared] == key[shared] {
			shared++
		}
	} else {
		w.restarts = append(w.restarts, uint32(len(w.buf)))
		w.counter = 0
	}
	unshared := key[shared:]

	w.buf = binary.AppendUvarint(w.buf, uint64(shared))
	w.buf = binary.AppendUvarint(w.buf, uint64(len(unshared)))
	w.buf = binary.AppendUvarint(w.buf, uint64(len(value)))
	w.buf = append(w.buf, unshared...)
	w.buf = append(w.buf, value...)

	w.lastKey = append(w.lastKey[:0], key...)
	w.counter++
}

func (w *blockWriter) empty() bool { return len(w.buf) == 0 }

// finish appends the restart-point index and count, returning the
// uncompressed block contents.
func (w *blockWriter) finish() []byte {
	buf := w.buf
	for _, r := range w.restarts {
		buf = binary.LittleEndian.AppendUint32(buf, r)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w.restarts)))
	return buf
}

func (w *blockWriter) reset() {
	w.buf = w.buf[:0]
	w.restarts = w.restarts[:0]
	w.restarts = append(w.restarts, 0)
	w.counter = 0
	w.lastKey = w.lastKey[:0]
}

// estimatedSize is used to decide when to flush: actual + a pointer per
// pending restart + the trailing restart count.
func (w *blockWriter) estimatedSize() int {
	return len(w.buf) + 4*len(w.restarts) + 4
}

// blockIter walks the decoded entries of one block in key order, with
// support for binary-searching the restart points to implement Seek.
type blockIter struct {
	cmp      func(a, b []byte) int
	data     []byte // entries only, trailer stripped
	restarts []uint32

	offset  int // current entry's offset
	nextOff int // offset just past current entry
	key     []byte
	value   []byte
	valid   bool
}

func newBlockIter(cmp func(a, b []byte) int, block []byte) (*blockIter, error) {
	if len(block) < 4 {
		return nil, errors.New("lsmdb/sstable: truncated block")
	}
	numRestarts := binary.LittleEndian.Uint32(block[len(block)-4:])
	restartsStart := len(block) - 4 - int(numRestarts)*4
	if restartsStart < 0 {
		return nil, errors.New("lsmdb/sstable: corrupt block restarts")
	}
	restarts := make([]uint32, numRestarts)
	for i := range restarts {
		restarts[i] = binary.LittleEndian.Uint32(block[restartsStart+4*i:])
	}
	return &blockIter{cmp: cmp, data: block[:restartsStart], restarts: restarts}, nil
}

func (it *blockIter) decodeAt(offset int) bool {
	buf := it.data[offset:]
	shared, n := binary.Uvarint(buf)
	if n <= 0 {
		it.valid = false
		return false
	}
	buf = buf[n:]
	unsharedLen, n := binary.Uvarint(buf)
	if n <= 0 {
		it.valid = false
		return false
	}
	buf = buf[n:]
	valueLen, n := binary.Uvarint(buf)
	if n <= 0 {
		it.valid = false
		return false
	}
	buf = buf[n:]

	key := make([]byte, int(shared)+int(unsharedLen))
	copy(key, it.key[:shared])
	copy(key[shared:], buf[:unsharedLen])
	buf = buf[unsharedLen:]

	it.key = key
	it.value = buf[:valueLen]
	it.offset = offset
	it.nextOff = offset + n2(shared) + n2(unsharedLen) + n2(valueLen) + int(unsharedLen) + int(valueLen)
	it.valid = true
	return true
}

// n2 returns the varint encoding length of v, used to recompute nextOff
// without re-walking the uvarint decode.
func n2(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func (it *blockIter) restartOffsetForKeyAt(idx int) int { return int(it.restarts[idx]) }

// seekToRestart decodes the full (unshared-only, shared=0) key stored at a
// restart point, resetting it.key so subsequent decodeAt calls can rebuild
// shared prefixes correctly.
func (it *blockIter) seekToRestart(idx int) {
	it.key = nil
	it.decodeAt(it.restartOffsetForKeyAt(idx))
}

func (it *blockIter) SeekToFirst() {
	if len(it.restarts) == 0 {
		it.valid = false
		return
	}
	it.seekToRestart(0)
}

func (it *blockIter) SeekToLast() {
	if len(it.restarts) == 0 {
		it.valid = false
		return
	}
	it.seekToRestart(len(it.restarts) - 1)
	for it.valid {
		next := it.nextOff
		if next >= len(it.data) {
			break
		}
		if !it.decodeAt(next) {
			break
		}
	}
}

// Seek positions the iterator at the first entry with key >= target.
func (it *blockIter) Seek(target []byte) {
	lo, hi := 0, len(it.restarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		it.key = nil
		if !it.decodeAt(it.restartOffsetForKeyAt(mid)) {
			hi = mid - 1
			continue
		}
		if it.cmp(it.key, target) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	it.seekToRestart(lo)
	for it.valid && it.cmp(it.key, target) < 0 {
		if it.nextOff >= len(it.data) {
			it.valid = false
			return
		}
		it.decodeAt(it.nextOff)
	}
}

func (it *blockIter) Next() {
	if it.nextOff >= len(it.data) {
		it.valid = false
		return
	}
	it.decodeAt(it.nextOff)
}

func (it *blockIter) Valid() bool    { return it.valid }
func (it *blockIter) Key() []byte    { return it.key }
func (it *blockIter) Value() []byte  { return it.value }
