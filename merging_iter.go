// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"container/heap"

	"github.com/tillwork/lsmdb/internal/base"
	"github.com/tillwork/lsmdb/internal/sstable"
)

// internalIter is the common shape of every source a mergingIter merges:
// the memtable iterator and the sstable iterator both already implement
// it. Iteration is forward-only (see DESIGN.md for why Prev isn't
// supported across heterogeneous sources).
type internalIter interface {
	SeekToFirst()
	Seek(key []byte)
	Next()
	Valid() bool
	Key() []byte
	Value() []byte
}

type mergingIterSource struct {
	it     internalIter
	closer func()
}

// mergingIter performs a k-way forward merge over every memtable and
// on-disk source contributing to a read, always surfacing the
// internal-key-ordered (ascending user key, descending sequence number)
// next entry across all of them.
type mergingIter struct {
	cmp     base.Compare
	sources []mergingIterSource
	heap    mergeHeap
}

type mergeHeap struct {
	cmp   base.Compare
	items []int // indices into mergingIter.sources, each currently Valid
	it    *mergingIter
}

func (h *mergeHeap) Len() int { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool {
	ki, _ := base.DecodeInternalKey(h.it.sources[h.items[i]].it.Key())
	kj, _ := base.DecodeInternalKey(h.it.sources[h.items[j]].it.Key())
	return base.InternalCompare(h.cmp, ki, kj) < 0
}
func (h *mergeHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x any)         { h.items = append(h.items, x.(int)) }
func (h *mergeHeap) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}

func newMergingIter(cmp base.Compare, sources []mergingIterSource) *mergingIter {
	m := &mergingIter{cmp: cmp, sources: sources}
	m.heap = mergeHeap{cmp: cmp, it: m}
	return m
}

func (m *mergingIter) rebuildHeap() {
	m.heap.items = m.heap.items[:0]
	for i, s := range m.sources {
		if s.it.Valid() {
			m.heap.items = append(m.heap.items, i)
		}
	}
	heap.Init(&m.heap)
}

// SeekToFirst positions every source at its first entry and rebuilds the
// heap.
func (m *mergingIter) SeekToFirst() {
	for _, s := range m.sources {
		s.it.SeekToFirst()
	}
	m.rebuildHeap()
}

// Seek positions every source at its first entry >= target and rebuilds
// the heap.
func (m *mergingIter) Seek(target []byte) {
	for _, s := range m.sources {
		s.it.Seek(target)
	}
	m.rebuildHeap()
}

// Next advances the source currently at the top of the heap.
func (m *mergingIter) Next() {
	if m.heap.Len() == 0 {
		return
	}
	top := m.heap.items[0]
	m.sources[top].it.Next()
	if m.sources[top].it.Valid() {
		heap.Fix(&m.heap, 0)
	} else {
		heap.Pop(&m.heap)
	}
}

func (m *mergingIter) Valid() bool { return m.heap.Len() > 0 }
func (m *mergingIter) Key() []byte { return m.sources[m.heap.items[0]].it.Key() }
func (m *mergingIter) Value() []byte { return m.sources[m.heap.items[0]].it.Value() }

func (m *mergingIter) Close() {
	for _, s := range m.sources {
		if s.closer != nil {
			s.closer()
		}
	}
}

// sstableSource adapts an sstable.Iterator into internalIter.
type sstableSource struct{ it *sstable.Iterator }

func (s sstableSource) SeekToFirst()    { s.it.SeekToFirst() }
func (s sstableSource) Seek(key []byte) { s.it.Seek(key) }
func (s sstableSource) Next()           { s.it.Next() }
func (s sstableSource) Valid() bool     { return s.it.Valid() }
func (s sstableSource) Key() []byte     { return s.it.Key() }
func (s sstableSource) Value() []byte   { return s.it.Value() }
