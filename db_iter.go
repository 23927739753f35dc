// Copyright 2025 the lsmdb Authors.

package lsmdb

import "github.com/tillwork/lsmdb/internal/base"

// Iterator walks the database's entries in ascending user-key order,
// hiding every version above its pinned sequence number and collapsing
// tombstones, so each distinct user key it visits is its newest
// snapshot-visible value.
//
// Iteration is forward-only; there is no Prev (see DESIGN.md).
type Iterator struct {
	db    *DB
	seq   base.SeqNum
	merge *mergingIter
	v     *version

	key   []byte
	value []byte
	valid bool
}

// NewIter returns an Iterator positioned before the first entry.
func (db *DB) NewIter(opts *ReadOptions) (*Iterator, error) {
	if opts == nil {
		opts = DefaultReadOptions()
	}
	db.mu.Lock()
	var seq base.SeqNum
	if opts.Snapshot != nil {
		seq = opts.Snapshot.seq
	} else {
		seq = db.versions.lastSequence
	}
	mem := db.mem
	imm := db.imm
	v := db.versions.current
	v.ref()

	var sources []mergingIterSource
	sources = append(sources, mergingIterSource{it: newMemTableIterator(mem)})
	if imm != nil {
		sources = append(sources, mergingIterSource{it: newMemTableIterator(imm)})
	}
	for level := 0; level < numLevels; level++ {
		for _, f := range v.files[level] {
			it, closer, err := db.tableCache.newIterator(f.num, f.size)
			if err != nil {
				db.mu.Unlock()
				v.unref()
				return nil, err
			}
			sources = append(sources, mergingIterSource{it: sstableSource{it}, closer: closer})
		}
	}
	db.mu.Unlock()

	merge := newMergingIter(db.opts.Comparer.Compare, sources)
	return &Iterator{db: db, seq: seq, merge: merge, v: v}, nil
}

// Close releases the version and table references the iterator pinned.
func (it *Iterator) Close() error {
	it.merge.Close()
	it.db.mu.Lock()
	it.v.unref()
	it.db.mu.Unlock()
	return nil
}

// SeekToFirst positions the iterator at the smallest snapshot-visible key.
func (it *Iterator) SeekToFirst() {
	it.merge.SeekToFirst()
	it.advanceToVisible()
}

// Seek positions the iterator at the smallest snapshot-visible key >= target.
func (it *Iterator) Seek(target []byte) {
	lookup := base.LookupKey(target, it.seq)
	it.merge.Seek(lookup.EncodeAppend(nil))
	it.advanceToVisible()
}

// Next advances to the next distinct, snapshot-visible, non-deleted user
// key.
func (it *Iterator) Next() {
	if !it.valid {
		return
	}
	cur := append([]byte(nil), it.key...)
	for it.merge.Valid() {
		ik, err := base.DecodeInternalKey(it.merge.Key())
		if err != nil || !bytesUserKeyEqual(ik.UserKey, cur) {
			break
		}
		it.merge.Next()
	}
	it.advanceToVisible()
}

// advanceToVisible scans forward from the merge iterator's current
// position to the next entry that is visible as of it.seq and not itself
// shadowed by a newer, already-seen version of the same user key,
// stopping at a Set and skipping past a Delete.
func (it *Iterator) advanceToVisible() {
	it.valid = false
	var lastUserKey []byte
	haveLast := false
	for it.merge.Valid() {
		ik, err := base.DecodeInternalKey(it.merge.Key())
		if err != nil {
			it.merge.Next()
			continue
		}
		if ik.SeqNum() > it.seq {
			it.merge.Next()
			continue
		}
		if haveLast && bytesUserKeyEqual(lastUserKey, ik.UserKey) {
			it.merge.Next()
			continue
		}
		lastUserKey = append(lastUserKey[:0], ik.UserKey...)
		haveLast = true
		if ik.Kind() == base.InternalKeyKindDelete {
			it.merge.Next()
			continue
		}
		it.key = append(it.key[:0], ik.UserKey...)
		it.value = append(it.value[:0], it.merge.Value()...)
		it.valid = true
		return
	}
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.valid }

// Key returns the user key at the current position.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the value at the current position.
func (it *Iterator) Value() []byte { return it.value }
