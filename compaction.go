// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"github.com/tillwork/lsmdb/internal/base"
	"github.com/tillwork/lsmdb/internal/sstable"
)

// shouldStopBefore reports whether the compaction output being built should
// be split into a new file before including key: once the cumulative byte
// overlap with the grandparent level crosses 10x the target file size, a
// future compaction of this output against its grandparent would itself be
// oversized.
type compactionState struct {
	c                *compaction
	grandparentIndex int
	seenFirstKey     bool
	overlappedBytes  uint64
}

func newCompactionState(c *compaction) *compactionState {
	return &compactionState{c: c}
}

func (s *compactionState) shouldStopBefore(cmp base.Compare, ikey base.InternalKey, maxFileSize int64) bool {
	c := s.c
	for s.grandparentIndex < len(c.grandparents) &&
		base.InternalCompare(cmp, ikey, c.grandparents[s.grandparentIndex].largest) > 0 {
		if s.seenFirstKey {
			s.overlappedBytes += c.grandparents[s.grandparentIndex].size
		}
		s.grandparentIndex++
	}
	s.seenFirstKey = true
	if s.overlappedBytes > uint64(10*maxFileSize) {
		s.overlappedBytes = 0
		return true
	}
	return false
}

// isBaseLevelForKey reports whether level c.level+1 (or deeper) is known to
// have no entry for userKey below the current compaction's output levels,
// letting the merge drop an obsolete tombstone instead of carrying it
// forward. It relies on the caller supplying a monotonically increasing
// sequence of keys, matching leveldb's single-pass cursor per level.
type baseLevelCursor struct {
	v       *version
	cmp     base.Compare
	level   int
	indices []int
}

func newBaseLevelCursor(v *version, cmp base.Compare, startLevel int) *baseLevelCursor {
	return &baseLevelCursor{v: v, cmp: cmp, level: startLevel, indices: make([]int, numLevels)}
}

func (b *baseLevelCursor) isBaseLevelForKey(userKey []byte) bool {
	for level := b.level + 2; level < numLevels; level++ {
		files := b.v.files[level]
		for b.indices[level] < len(files) {
			f := files[b.indices[level]]
			if b.cmp(userKey, f.largest.UserKey) <= 0 {
				if b.cmp(userKey, f.smallest.UserKey) >= 0 {
					return false
				}
				break
			}
			b.indices[level]++
		}
	}
	return true
}

// mergedIterHeap is a min-heap of per-file sstable iterators ordered by
// their current internal key, driving doCompactionWork's merge pass.
type mergedIterItem struct {
	it    *sstable.Iterator
	level int
}

type mergedIterHeap struct {
	cmp   base.Compare
	items []*mergedIterItem
}

func (h *mergedIterHeap) Len() int { return len(h.items) }
func (h *mergedIterHeap) Less(i, j int) bool {
	ki, _ := base.DecodeInternalKey(h.items[i].it.Key())
	kj, _ := base.DecodeInternalKey(h.items[j].it.Key())
	return base.InternalCompare(h.cmp, ki, kj) < 0
}
func (h *mergedIterHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergedIterHeap) Push(x any)    { h.items = append(h.items, x.(*mergedIterItem)) }
func (h *mergedIterHeap) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}
