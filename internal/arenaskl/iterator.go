// Copyright 2017 Dgraph Labs, Inc. and Contributors
// Modifications copyright (C) 2017 Andy Kimball and Contributors
// Modifications copyright 2025 the lsmdb Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package arenaskl

// Iterator walks a Skiplist's keys in ascending order. It has no Close
// method: it holds no resources beyond a pointer into the list, which
// outlives the iterator for as long as the owning memtable is referenced.
type Iterator struct {
	list *Skiplist
	nd   *node
}

// NewIterator returns an Iterator positioned before the first entry.
func NewIterator(s *Skiplist) *Iterator {
	return &Iterator{list: s}
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.nd != nil }

// Key returns the key at the iterator's current position. Valid must be
// true.
func (it *Iterator) Key() []byte { return it.nd.key }

// SeekToFirst positions the iterator at the smallest key in the list.
func (it *Iterator) SeekToFirst() {
	it.nd = it.list.head.next[0].Load()
}

// SeekToLast positions the iterator at the largest key in the list.
func (it *Iterator) SeekToLast() {
	x := &it.list.head
	for level := maxHeight - 1; level >= 0; level-- {
		for {
			next := x.next[level].Load()
			if next == nil {
				break
			}
			x = next
		}
	}
	if x == &it.list.head {
		it.nd = nil
	} else {
		it.nd = x
	}
}

// Seek positions the iterator at the first key >= target.
func (it *Iterator) Seek(target []byte) {
	x := &it.list.head
	for level := maxHeight - 1; level >= 0; level-- {
		for {
			next := x.next[level].Load()
			if next == nil || it.list.cmp(next.key, target) >= 0 {
				break
			}
			x = next
		}
	}
	it.nd = x.next[0].Load()
}

// Next advances the iterator to the next key. Valid must be true.
func (it *Iterator) Next() {
	it.nd = it.nd.next[0].Load()
}

// Prev moves the iterator to the previous key. Valid must be true. Unlike
// Next, Prev is O(log n): the list only has forward pointers, so it
// re-searches from the head for the last node strictly less than the
// current key.
func (it *Iterator) Prev() {
	key := it.nd.key
	x := &it.list.head
	var prev *node
	for level := maxHeight - 1; level >= 0; level-- {
		for {
			next := x.next[level].Load()
			if next == nil || it.list.cmp(next.key, key) >= 0 {
				break
			}
			x = next
		}
		if x != &it.list.head {
			prev = x
		}
	}
	it.nd = prev
}
