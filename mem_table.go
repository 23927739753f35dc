// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"encoding/binary"

	"github.com/tillwork/lsmdb/internal/arenaskl"
	"github.com/tillwork/lsmdb/internal/base"
)

// memTable is the in-memory sorted buffer backing the write path: a skip
// list keyed by a self-describing entry encoding so the comparator can
// decode just the internal key prefix without knowing about values.
//
// Entry wire format: varint32(internal_key_len) ‖ internal_key ‖
// varint32(value_len) ‖ value.
type memTable struct {
	cmp *base.Comparer
	skl *arenaskl.Skiplist
}

func newMemTable(cmp *base.Comparer) *memTable {
	m := &memTable{cmp: cmp}
	m.skl = arenaskl.NewSkiplist(arenaskl.NewArena(), m.compareEntries)
	return m
}

// compareEntries compares two memTable entries by decoding just their
// internal-key prefix, ignoring the trailing value bytes.
func (m *memTable) compareEntries(a, b []byte) int {
	ak := decodeEntryKey(a)
	bk := decodeEntryKey(b)
	return base.InternalCompareEncoded(m.cmp.Compare, ak, bk)
}

func decodeEntryKey(entry []byte) []byte {
	klen, n := binary.Uvarint(entry)
	return entry[n : n+int(klen)]
}

func encodeEntry(ikey []byte, value []byte) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen32*2+len(ikey)+len(value))
	buf = binary.AppendUvarint(buf, uint64(len(ikey)))
	buf = append(buf, ikey...)
	buf = binary.AppendUvarint(buf, uint64(len(value)))
	buf = append(buf, value...)
	return buf
}

func decodeEntry(entry []byte) (ikey, value []byte) {
	klen, n := binary.Uvarint(entry)
	ikey = entry[n : n+int(klen)]
	entry = entry[n+int(klen):]
	vlen, n := binary.Uvarint(entry)
	value = entry[n : n+int(vlen)]
	return ikey, value
}

// set inserts a Set or Delete entry. seq must be larger than every
// sequence number already inserted, which the write path's single-writer
// discipline guarantees.
func (m *memTable) set(userKey []byte, seq base.SeqNum, kind base.InternalKeyKind, value []byte) {
	ikey := base.MakeInternalKey(userKey, seq, kind)
	m.skl.Insert(encodeEntry(ikey.EncodeAppend(nil), value))
}

// get returns the value for userKey visible as of seq: the newest entry
// with a sequence number <= seq. found is false if there is no such entry
// or its kind is a tombstone; deleted reports the tombstone case.
func (m *memTable) get(userKey []byte, seq base.SeqNum) (value []byte, found bool, deleted bool) {
	it := arenaskl.NewIterator(m.skl)
	lookup := base.LookupKey(userKey, seq)
	it.Seek(encodeEntry(lookup.EncodeAppend(nil), nil))
	if !it.Valid() {
		return nil, false, false
	}
	ikeyBuf, v := decodeEntry(it.Key())
	ik, err := base.DecodeInternalKey(ikeyBuf)
	if err != nil {
		return nil, false, false
	}
	if !userKeysEqual(ik.UserKey, userKey) {
		return nil, false, false
	}
	if ik.Kind() == base.InternalKeyKindDelete {
		return nil, false, true
	}
	return v, true, false
}

func userKeysEqual(a, b []byte) bool {
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

// ApproximateMemoryUsage returns the memtable's arena-backed footprint,
// compared against write_buffer_size to decide when to rotate.
func (m *memTable) ApproximateMemoryUsage() uint64 {
	return m.skl.ApproximateMemoryUsage()
}

// memTableIterator walks a memtable's entries in ascending internal-key
// order, decoding each entry back into its internal key and value.
type memTableIterator struct {
	it *arenaskl.Iterator
}

func newMemTableIterator(m *memTable) *memTableIterator {
	return &memTableIterator{it: arenaskl.NewIterator(m.skl)}
}

func (it *memTableIterator) SeekToFirst() { it.it.SeekToFirst() }
func (it *memTableIterator) SeekToLast()  { it.it.SeekToLast() }
func (it *memTableIterator) Seek(ikey []byte) {
	// A pure-ikey seek target has no value suffix; entries sort by the
	// decoded ikey prefix alone, so padding with a zero value-length
	// varint gives a valid, minimal comparison key.
	it.it.Seek(encodeEntry(ikey, nil))
}
func (it *memTableIterator) Next() { it.it.Next() }
func (it *memTableIterator) Prev() { it.it.Prev() }
func (it *memTableIterator) Valid() bool { return it.it.Valid() }
func (it *memTableIterator) Key() []byte {
	ikey, _ := decodeEntry(it.it.Key())
	return ikey
}
func (it *memTableIterator) Value() []byte {
	_, v := decodeEntry(it.it.Key())
	return v
}
