// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"github.com/cockroachdb/errors"

	"github.com/tillwork/lsmdb/internal/base"
)

// maxBatchGroupSize bounds how many bytes of pending writers a single
// leader folds into one WAL record, mirroring leveldb's 1 MiB writer-group
// cap so one huge batch can't starve everyone queued behind it forever.
const maxBatchGroupSize = 1 << 20

// writer is one pending Write call, queued under db.mu until it either
// becomes the group leader or a leader commits its batch on its behalf.
// All fields are only touched while db.mu is held.
type writer struct {
	batch    *Batch
	sync     bool
	finished bool
	err      error
}

// write enqueues b and blocks until it (or a leader writing on its behalf)
// has durably applied it.
func (db *DB) write(b *Batch, opts *WriteOptions) error {
	if opts == nil {
		opts = DefaultWriteOptions()
	}
	w := &writer{batch: b, sync: opts.Sync}

	db.mu.Lock()
	db.writeQueue = append(db.writeQueue, w)
	for len(db.writeQueue) > 0 && db.writeQueue[0] != w && !w.finished {
		db.writerCond.Wait()
	}
	if w.finished {
		err := w.err
		db.mu.Unlock()
		return err
	}

	// w is now the front of the queue: it leads a group commit.
	if err := db.makeRoomForWrite(b.Empty()); err != nil {
		db.popGroup([]*writer{w}, err)
		db.writerCond.Broadcast()
		db.mu.Unlock()
		return err
	}

	group, groupSync := db.collectGroup()

	merged := NewBatch()
	merged.data = merged.data[:batchHeaderLen]
	var count uint32
	for _, gw := range group {
		it := gw.batch.iter()
		for {
			kind, key, value, ok := it.next()
			if !ok {
				break
			}
			merged.data = append(merged.data, byte(kind))
			merged.data = appendVarstr(merged.data, key)
			if kind != base.InternalKeyKindDelete {
				merged.data = appendVarstr(merged.data, value)
			}
			count++
		}
	}
	merged.count = count
	merged.setCount()
	seq := db.versions.lastSequence + 1
	if count > 0 && seq+base.SeqNum(count)-1 > base.SeqNumMax {
		err := errors.New("lsmdb: sequence number overflow")
		db.popGroup(group, err)
		db.writerCond.Broadcast()
		db.mu.Unlock()
		return err
	}
	merged.setSeqNum(seq)

	db.mu.Unlock()

	var err error
	if count > 0 {
		err = db.log.WriteRecord(merged.data)
		if err == nil && groupSync {
			err = db.logFile.Sync()
		}
		if err == nil {
			db.applyBatch(merged, seq)
		}
	}

	db.mu.Lock()
	if err == nil && count > 0 {
		db.versions.lastSequence = seq + base.SeqNum(count) - 1
	}
	db.popGroup(group, err)
	db.writerCond.Broadcast()
	db.mu.Unlock()

	return err
}

// collectGroup gathers the writers at the front of the queue into one
// group, up to maxBatchGroupSize bytes, removing them from the queue. Must
// be called with db.mu held and the queue non-empty.
func (db *DB) collectGroup() (group []*writer, sync bool) {
	first := db.writeQueue[0]
	size := len(first.batch.data)
	sync = first.sync
	group = append(group, first)
	i := 1
	for i < len(db.writeQueue) {
		next := db.writeQueue[i]
		nextSize := len(next.batch.data)
		if size+nextSize > maxBatchGroupSize {
			break
		}
		size += nextSize
		sync = sync || next.sync
		group = append(group, next)
		i++
	}
	db.writeQueue = db.writeQueue[i:]
	return group, sync
}

// popGroup marks every writer in group as finished with err. Must be
// called with db.mu held.
func (db *DB) popGroup(group []*writer, err error) {
	for _, w := range group {
		w.err = err
		w.finished = true
	}
}

// applyBatch inserts merged's entries into the active memtable, assigning
// consecutive sequence numbers starting at seq. Called without db.mu held;
// the memtable's skip list tolerates concurrent readers during this
// single-writer insertion.
func (db *DB) applyBatch(merged *Batch, seq base.SeqNum) {
	it := merged.iter()
	cur := seq
	for {
		kind, key, value, ok := it.next()
		if !ok {
			break
		}
		db.mem.set(key, cur, kind, value)
		cur++
	}
}
