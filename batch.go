// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsmdb

import (
	"encoding/binary"

	"github.com/tillwork/lsmdb/internal/base"
)

// batchHeaderLen is the fixed header every batch's wire encoding starts
// with: an 8-byte sequence number for the batch's first entry, followed by
// a 4-byte count of entries.
const batchHeaderLen = 12

// Batch is a sequence of Set and Delete operations applied atomically: a
// single WAL record and a single pass of memtable insertion under one
// assigned range of sequence numbers.
type Batch struct {
	// data is the wire format of the batch's eventual WAL record:
	//   - 8 bytes: sequence number of the batch's first entry (filled in
	//     by the writer leader when the batch is committed, zero until
	//     then),
	//   - 4 bytes: count of entries,
	//   - count entries, each: 1 byte kind, varint-length-prefixed key,
	//     and (for Set) a varint-length-prefixed value.
	data  []byte
	count uint32
}

// NewBatch returns an empty Batch ready for Set/Delete calls.
func NewBatch() *Batch {
	b := &Batch{data: make([]byte, batchHeaderLen)}
	return b
}

// Set appends a Set(key, value) operation to the batch.
func (b *Batch) Set(key, value []byte) {
	b.init()
	b.data = append(b.data, byte(base.InternalKeyKindSet))
	b.data = appendVarstr(b.data, key)
	b.data = appendVarstr(b.data, value)
	b.count++
	b.setCount()
}

// Delete appends a Delete(key) operation to the batch.
func (b *Batch) Delete(key []byte) {
	b.init()
	b.data = append(b.data, byte(base.InternalKeyKindDelete))
	b.data = appendVarstr(b.data, key)
	b.count++
	b.setCount()
}

func (b *Batch) init() {
	if b.data == nil {
		b.data = make([]byte, batchHeaderLen)
	}
}

func (b *Batch) setCount() {
	binary.LittleEndian.PutUint32(b.data[8:12], b.count)
}

func appendVarstr(buf []byte, s []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// Empty reports whether the batch has no operations.
func (b *Batch) Empty() bool { return b.count == 0 }

// Count returns the number of operations in the batch.
func (b *Batch) Count() uint32 { return b.count }

func (b *Batch) seqNum() base.SeqNum {
	return base.SeqNum(binary.LittleEndian.Uint64(b.data[:8]))
}

func (b *Batch) setSeqNum(seq base.SeqNum) {
	binary.LittleEndian.PutUint64(b.data[:8], uint64(seq))
}

// iter returns a cursor over the batch's entries, skipping the header.
func (b *Batch) iter() batchIter {
	if len(b.data) < batchHeaderLen {
		return nil
	}
	return batchIter(b.data[batchHeaderLen:])
}

type batchIter []byte

// next returns the next operation in the batch; ok is false once the
// cursor is exhausted or the remaining bytes are malformed.
func (t *batchIter) next() (kind base.InternalKeyKind, key, value []byte, ok bool) {
	p := *t
	if len(p) == 0 {
		return 0, nil, nil, false
	}
	kind, *t = base.InternalKeyKind(p[0]), p[1:]
	if kind > base.InternalKeyKindMax {
		return 0, nil, nil, false
	}
	key, ok = t.nextStr()
	if !ok {
		return 0, nil, nil, false
	}
	if kind != base.InternalKeyKindDelete {
		value, ok = t.nextStr()
		if !ok {
			return 0, nil, nil, false
		}
	}
	return kind, key, value, true
}

func (t *batchIter) nextStr() ([]byte, bool) {
	p := *t
	u, numBytes := binary.Uvarint(p)
	if numBytes <= 0 {
		return nil, false
	}
	p = p[numBytes:]
	if u > uint64(len(p)) {
		return nil, false
	}
	s := p[:u]
	*t = p[u:]
	return s, true
}
