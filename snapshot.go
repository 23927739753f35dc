// Copyright 2025 the lsmdb Authors.

package lsmdb

import "github.com/tillwork/lsmdb/internal/base"

// Snapshot pins a sequence number so reads taken against it never observe
// writes committed afterward, and so compaction never discards a version of
// a key that a live snapshot can still see.
type Snapshot struct {
	db   *DB
	seq  base.SeqNum
	prev *Snapshot
	next *Snapshot
}

// snapshotList is a circular doubly-linked list of live snapshots, headed
// by a sentinel node so insertion and removal never need a nil check.
type snapshotList struct {
	root Snapshot
}

func (l *snapshotList) init() {
	l.root.next = &l.root
	l.root.prev = &l.root
}

func (l *snapshotList) empty() bool { return l.root.next == &l.root }

func (l *snapshotList) pushBack(s *Snapshot) {
	last := l.root.prev
	s.prev = last
	s.next = &l.root
	last.next = s
	l.root.prev = s
}

func (s *Snapshot) remove() {
	s.prev.next = s.next
	s.next.prev = s.prev
	s.prev, s.next = nil, nil
}

// oldest returns the sequence number of the longest-lived snapshot, or
// seqNum if there are none, for use as a compaction's smallest_snapshot.
func (l *snapshotList) oldest(seqNum base.SeqNum) base.SeqNum {
	if l.empty() {
		return seqNum
	}
	return l.root.next.seq
}

// GetSnapshot returns a handle to the database's current state. The caller
// must call ReleaseSnapshot when done to let compaction reclaim keys the
// snapshot was pinning.
func (db *DB) GetSnapshot() *Snapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := &Snapshot{db: db, seq: db.versions.lastSequence}
	db.snapshots.pushBack(s)
	return s
}

// ReleaseSnapshot releases a snapshot acquired by GetSnapshot.
func (db *DB) ReleaseSnapshot(s *Snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s.remove()
}

// SeqNum returns the sequence number a snapshot pins, exposed for
// diagnostics and tests.
func (s *Snapshot) SeqNum() base.SeqNum { return s.seq }
